package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"raven/internal/client"
	"raven/internal/config"
	"raven/internal/tools"
)

func TestUnitHookRegistry(t *testing.T) {
	spec.Run(t, "HookRegistry", testHookRegistry, spec.Report(report.Terminal{}))
}

func testHookRegistry(t *testing.T, when spec.G, it spec.S) {
	var hooks *HookRegistry

	it.Before(func() {
		RegisterTestingT(t)
		hooks = NewHookRegistry()
	})

	postResult := func(server *httptest.Server, token string, result DelegateResult) *http.Response {
		body, err := json.Marshal(result)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(server.URL+"?token="+token, "application/json", bytes.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		return resp
	}

	when("delegates resolve out of order", func() {
		it("joins only after all arrive and preserves task-index order", func() {
			server := httptest.NewServer(hooks.Handler())
			defer server.Close()

			tokens := []string{hooks.Register(0), hooks.Register(1), hooks.Register(2)}

			type joined struct {
				results []DelegateResult
				err     error
			}
			done := make(chan joined, 1)
			go func() {
				results, err := hooks.WaitAll(context.Background(), 0)
				done <- joined{results, err}
			}()

			resp := postResult(server, tokens[2], DelegateResult{Objective: "third", Completed: true})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			postResult(server, tokens[0], DelegateResult{Objective: "first", Completed: true})

			select {
			case <-done:
				t.Fatal("wait resolved before all delegates posted")
			case <-time.After(100 * time.Millisecond):
			}

			postResult(server, tokens[1], DelegateResult{Objective: "second", Completed: true})

			select {
			case j := <-done:
				Expect(j.err).NotTo(HaveOccurred())
				Expect(j.results).To(HaveLen(3))
				Expect(j.results[0].Objective).To(Equal("first"))
				Expect(j.results[1].Objective).To(Equal("second"))
				Expect(j.results[2].Objective).To(Equal("third"))
			case <-time.After(time.Second):
				t.Fatal("wait did not resolve after the last delegate posted")
			}
		})
	})

	when("a delegate never posts", func() {
		it("fails the wait when a timeout is configured", func() {
			hooks.Register(0)

			_, err := hooks.WaitAll(context.Background(), 50*time.Millisecond)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("timed out"))
		})

		it("honors context cancellation while waiting indefinitely", func() {
			hooks.Register(0)
			ctx, cancel := context.WithCancel(context.Background())

			done := make(chan error, 1)
			go func() {
				_, err := hooks.WaitAll(ctx, 0)
				done <- err
			}()
			cancel()

			select {
			case err := <-done:
				Expect(err).To(MatchError(context.Canceled))
			case <-time.After(time.Second):
				t.Fatal("wait ignored cancellation")
			}
		})
	})

	when("the callback endpoint is misused", func() {
		it("rejects unknown tokens, double posts, and bad requests", func() {
			server := httptest.NewServer(hooks.Handler())
			defer server.Close()

			resp := postResult(server, "no-such-token", DelegateResult{})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			token := hooks.Register(0)
			resp = postResult(server, token, DelegateResult{Completed: true})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp = postResult(server, token, DelegateResult{Completed: true})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			getResp, err := http.Get(server.URL + "?token=" + token)
			Expect(err).NotTo(HaveOccurred())
			getResp.Body.Close()
			Expect(getResp.StatusCode).To(Equal(http.StatusMethodNotAllowed))

			missing, err := http.Post(server.URL, "application/json", bytes.NewReader([]byte("{}")))
			Expect(err).NotTo(HaveOccurred())
			missing.Body.Close()
			Expect(missing.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	when("delegates run end to end", func() {
		it("fans objectives out and returns their reports in order", func() {
			server := httptest.NewServer(hooks.Handler())
			defer server.Close()

			// Echo each delegate's objective back as its answer so the
			// join order is observable.
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				objective := "unknown"
				for _, content := range req.History {
					for _, part := range content.Parts {
						if part.Text != "" {
							objective = part.Text
						}
					}
				}
				return &client.Step{Text: fmt.Sprintf("report: %s", objective)}, nil
			}}

			cfg := config.Default()
			runner := NewRunner(fc, tools.NewRegistry(), NewTracker(), NewBus(), cfg)

			objectives := []string{"scan ports", "enumerate users", "check web headers"}
			results, err := runner.RunDelegates(context.Background(), objectives, hooks, server.URL, 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			for i, objective := range objectives {
				Expect(results[i].Objective).To(Equal(objective))
				Expect(results[i].Result).To(Equal("report: " + objective))
				Expect(results[i].Completed).To(BeTrue())
			}
		})
	})
}
