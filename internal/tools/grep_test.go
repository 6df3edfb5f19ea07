package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"

	"raven/internal/errs"
)

func TestUnitGrepTool(t *testing.T) {
	spec.Run(t, "GrepTool", testGrepTool, spec.Report(report.Terminal{}))
}

func testGrepTool(t *testing.T, when spec.G, it spec.S) {
	var (
		tool *GrepTool
		dir  string
	)

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	it.Before(func() {
		RegisterTestingT(t)
		dir = t.TempDir()
		tool = NewGrepTool(dir)
	})

	when("validating the pattern", func() {
		it("fails fast with a regex error on malformed patterns", func() {
			err := tool.Validate(map[string]any{"pattern": "([unclosed"})

			te, ok := errs.As(err)
			Expect(ok).To(BeTrue())
			Expect(te.Category).To(Equal(errs.CategoryValidation))
			Expect(te.Code).To(Equal(errs.CodeRegexError))
		})

		it("accepts a valid pattern", func() {
			Expect(tool.Validate(map[string]any{"pattern": `flag\{.*\}`})).To(Succeed())
		})
	})

	when("counting matches", func() {
		it("counts matching lines case-sensitively", func() {
			write("words.txt", "one\ntwo\none\none\n")

			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "one"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data["matches"]).To(Equal(3))
		})

		it("counts all case variants when case_insensitive is set", func() {
			write("greetings.txt", "Hello\nHELLO\nhello\nHeLLo\n")

			result, err := tool.Execute(context.Background(), map[string]any{
				"pattern":          "hello",
				"case_insensitive": true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data["matches"]).To(Equal(4))
		})
	})

	when("results exceed the cap", func() {
		it("stops at 50 matches and sets the truncation flag", func() {
			var content string
			for i := 0; i < 80; i++ {
				content += fmt.Sprintf("needle %d\n", i)
			}
			write("big.txt", content)

			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "needle"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data["matches"]).To(Equal(50))
			Expect(result.Data["truncated"]).To(Equal(true))
			Expect(result.Content).To(ContainSubstring("stopped at 50 matches"))
		})
	})

	when("filtering by filename glob", func() {
		it("searches only matching files", func() {
			write("a.go", "needle\n")
			write("b.txt", "needle\n")

			result, err := tool.Execute(context.Background(), map[string]any{
				"pattern": "needle",
				"include": "*.go",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data["matches"]).To(Equal(1))
			Expect(result.Content).To(ContainSubstring("a.go"))
			Expect(result.Content).NotTo(ContainSubstring("b.txt"))
		})
	})

	when("nothing matches", func() {
		it("reports zero matches as a successful result", func() {
			write("empty.txt", "nothing here\n")

			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "absent"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Success).To(BeTrue())
			Expect(result.Data["matches"]).To(Equal(0))
		})
	})
}
