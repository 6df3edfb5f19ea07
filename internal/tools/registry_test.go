package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"
	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/retry"
)

type fakeTool struct {
	name        string
	validateErr error
	execute     func(ctx context.Context, args map[string]any) (ToolResult, error)
	calls       int
	retryOn     func(error) bool
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake" }
func (f *fakeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: f.name, Description: "fake"}
}
func (f *fakeTool) Validate(args map[string]any) error { return f.validateErr }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	f.calls++
	return f.execute(ctx, args)
}

type retryableFakeTool struct{ fakeTool }

func (f *retryableFakeTool) RetryOn(err error) bool { return f.retryOn(err) }

func TestUnitRegistry(t *testing.T) {
	spec.Run(t, "Registry", testRegistry, spec.Report(report.Terminal{}))
}

func testRegistry(t *testing.T, when spec.G, it spec.S) {
	var registry *Registry

	it.Before(func() {
		RegisterTestingT(t)
		registry = NewRegistry()
	})

	when("registering tools", func() {
		it("panics on duplicate registration", func() {
			registry.Register(&fakeTool{name: "probe"})
			Expect(func() {
				registry.Register(&fakeTool{name: "probe"})
			}).To(Panic())
		})

		it("returns declarations in stable sorted order", func() {
			registry.Register(&fakeTool{name: "zeta"})
			registry.Register(&fakeTool{name: "alpha"})
			registry.Register(&fakeTool{name: "mid"})

			decls := registry.Declarations()
			Expect(decls).To(HaveLen(3))
			Expect(decls[0].Name).To(Equal("alpha"))
			Expect(decls[1].Name).To(Equal("mid"))
			Expect(decls[2].Name).To(Equal("zeta"))
		})
	})

	when("building subsets", func() {
		it("includes only the named tools and ignores unknown names", func() {
			registry.Register(&fakeTool{name: "a"})
			registry.Register(&fakeTool{name: "b"})

			sub := registry.Subset([]string{"a", "nope"})
			Expect(sub.Names()).To(Equal([]string{"a"}))
		})

		it("excludes the named tools with Without", func() {
			registry.Register(&fakeTool{name: "a"})
			registry.Register(&fakeTool{name: "b"})
			registry.Register(&fakeTool{name: "c"})

			sub := registry.Without("b")
			Expect(sub.Names()).To(Equal([]string{"a", "c"}))
		})
	})

	when("dispatching", func() {
		it("reports unknown tools as a failed result, not a panic", func() {
			result := registry.Dispatch(context.Background(), "ghost", nil)

			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("unknown tool"))
			Expect(result.Data["category"]).To(Equal("validation"))
		})

		it("converts validation failures into typed failure results", func() {
			registry.Register(&fakeTool{
				name:        "strict",
				validateErr: errs.New("bad args", errs.CategoryValidation, errs.CodeInvalidInput),
			})

			result := registry.Dispatch(context.Background(), "strict", nil)
			Expect(result.Success).To(BeFalse())
			Expect(result.Data["code"]).To(Equal("INVALID_INPUT"))
		})

		it("converts execution errors into failure payloads the model can read", func() {
			registry.Register(&fakeTool{
				name: "flaky",
				execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
					return ToolResult{}, errs.New("scan blocked", errs.CategoryNetwork, errs.CodeNetworkError)
				},
			})

			result := registry.Dispatch(context.Background(), "flaky", nil)
			Expect(result.Success).To(BeFalse())
			Expect(result.Data["category"]).To(Equal("network"))
			Expect(result.Data["recoverable"]).To(Equal(true))
		})

		it("runs non-retryable tools exactly once", func() {
			tool := &fakeTool{
				name: "once",
				execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
					return ToolResult{}, errors.New("timeout")
				},
			}
			registry.Register(tool)

			registry.Dispatch(context.Background(), "once", nil)
			Expect(tool.calls).To(Equal(1))
		})

		it("retries tools that opt in, on the failures they nominate", func() {
			tool := &retryableFakeTool{fakeTool{
				name: "scanner",
				execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
					return ToolResult{}, errors.New("connection reset")
				},
				retryOn: retry.IsTransientError,
			}}
			registry.Register(tool)
			registry.SetRetryConfig(retry.Config{
				MaxRetries: 2,
				Sleep: func(ctx context.Context, d time.Duration) error {
					return nil
				},
			})

			result := registry.Dispatch(context.Background(), "scanner", nil)
			Expect(result.Success).To(BeFalse())
			Expect(tool.calls).To(Equal(3))
		})

		it("does not retry failures the tool's predicate declines", func() {
			tool := &retryableFakeTool{fakeTool{
				name: "scanner",
				execute: func(ctx context.Context, args map[string]any) (ToolResult, error) {
					return ToolResult{}, errors.New("invalid argument")
				},
				retryOn: retry.IsTransientError,
			}}
			registry.Register(tool)
			registry.SetRetryConfig(retry.Config{
				MaxRetries: 5,
				Sleep: func(ctx context.Context, d time.Duration) error {
					return nil
				},
			})

			registry.Dispatch(context.Background(), "scanner", nil)
			Expect(tool.calls).To(Equal(1))
		})
	})
}
