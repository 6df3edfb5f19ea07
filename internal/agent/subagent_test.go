package agent

import (
	"context"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"raven/internal/client"
	"raven/internal/config"
	"raven/internal/errs"
	"raven/internal/tools"
)

func TestUnitSubAgentRunner(t *testing.T) {
	spec.Run(t, "SubAgentRunner", testSubAgentRunner, spec.Report(report.Terminal{}))
}

func testSubAgentRunner(t *testing.T, when spec.G, it spec.S) {
	var (
		cfg      *config.Config
		registry *tools.Registry
		tracker  *Tracker
	)

	newRunner := func(fc *fakeClient) *Runner {
		return NewRunner(fc, registry, tracker, NewBus(), cfg)
	}

	it.Before(func() {
		RegisterTestingT(t)
		cfg = config.Default()
		cfg.Agent.SubAgentRounds = 4
		tracker = NewTracker()
		registry = tools.NewRegistry()
		registry.Register(&recordingTool{name: "probe"})
		registry.Register(&recordingTool{name: "sub_agent"})
		registry.Register(&recordingTool{name: "write"})
		registry.Register(&recordingTool{name: "edit"})
	})

	when("the delegate succeeds", func() {
		it("returns the final answer and completes its tracker session", func() {
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				return &client.Step{Text: "port 22 and 80 open"}, nil
			}}

			outcome, err := newRunner(fc).RunSubAgent(context.Background(), "scan the host", tools.SubAgentOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Success).To(BeTrue())
			Expect(outcome.Result).To(Equal("port 22 and 80 open"))
			Expect(outcome.ID).NotTo(BeEmpty())
			Expect(outcome.Duration).To(BeNumerically(">", 0))

			session, ok := tracker.GetSession(outcome.ID)
			Expect(ok).To(BeTrue())
			Expect(session.Status).To(Equal(SessionCompleted))
			Expect(session.Objective).To(Equal("scan the host"))
		})
	})

	when("the delegate fails internally", func() {
		it("folds a failing model into the outcome instead of an error", func() {
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				return nil, errs.New("bad key", errs.CategoryPermission, errs.CodePermissionDenied)
			}}

			outcome, err := newRunner(fc).RunSubAgent(context.Background(), "scan", tools.SubAgentOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Success).To(BeFalse())
			Expect(outcome.Error).NotTo(BeEmpty())

			session, _ := tracker.GetSession(outcome.ID)
			Expect(session.Status).To(Equal(SessionError))
		})

		it("recovers a panic and reports it as outcome data", func() {
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				panic("model client exploded")
			}}

			outcome, err := newRunner(fc).RunSubAgent(context.Background(), "scan", tools.SubAgentOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Success).To(BeFalse())
			Expect(outcome.Error).To(ContainSubstring("model client exploded"))

			session, _ := tracker.GetSession(outcome.ID)
			Expect(session.Status).To(Equal(SessionError))
		})
	})

	when("the toolkit is restricted", func() {
		it("never offers delegation or file mutation tools to the delegate", func() {
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				return &client.Step{Text: "done"}, nil
			}}

			_, err := newRunner(fc).RunSubAgent(context.Background(), "scan", tools.SubAgentOptions{})
			Expect(err).NotTo(HaveOccurred())

			names := declarationNames(fc.requests[0])
			Expect(names).To(ContainElement("probe"))
			Expect(names).NotTo(ContainElement("sub_agent"))
			Expect(names).NotTo(ContainElement("write"))
			Expect(names).NotTo(ContainElement("edit"))
		})

		it("honors an allow-list while still stripping restricted tools", func() {
			registry.Register(&recordingTool{name: "other"})
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				return &client.Step{Text: "done"}, nil
			}}

			_, err := newRunner(fc).RunSubAgent(context.Background(), "scan", tools.SubAgentOptions{
				AllowedTools: []string{"probe", "write"},
			})
			Expect(err).NotTo(HaveOccurred())

			names := declarationNames(fc.requests[0])
			Expect(names).To(ConsistOf("probe"))
		})
	})

	when("a step budget is supplied", func() {
		it("caps the delegate's tool rounds", func() {
			fc := &fakeClient{stepFn: func(call int, req client.Request) (*client.Step, error) {
				return toolCallStep("probe", map[string]any{"n": float64(call)}), nil
			}}

			outcome, err := newRunner(fc).RunSubAgent(context.Background(), "scan", tools.SubAgentOptions{MaxSteps: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Steps).To(Equal(2))
			Expect(fc.callCount()).To(Equal(3))
		})
	})
}

func declarationNames(req client.Request) []string {
	var names []string
	for _, decl := range req.Tools {
		names = append(names, decl.Name)
	}
	return names
}
