package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"
)

func TestUnitGlobTool(t *testing.T) {
	spec.Run(t, "GlobTool", testGlobTool, spec.Report(report.Terminal{}))
}

func testGlobTool(t *testing.T, when spec.G, it spec.S) {
	var (
		tool *GlobTool
		dir  string
	)

	it.Before(func() {
		RegisterTestingT(t)
		dir = t.TempDir()
		tool = NewGlobTool(dir)
	})

	when("validating the pattern", func() {
		it("rejects empty and malformed patterns", func() {
			Expect(tool.Validate(map[string]any{"pattern": ""})).NotTo(Succeed())
			Expect(tool.Validate(map[string]any{"pattern": "[unclosed"})).NotTo(Succeed())
		})
	})

	when("matching files", func() {
		it("returns matches sorted by modification time, newest first", func() {
			older := filepath.Join(dir, "older.log")
			newer := filepath.Join(dir, "newer.log")
			Expect(os.WriteFile(older, []byte("a"), 0644)).To(Succeed())
			Expect(os.WriteFile(newer, []byte("b"), 0644)).To(Succeed())

			base := time.Now().Add(-time.Hour)
			Expect(os.Chtimes(older, base, base)).To(Succeed())
			Expect(os.Chtimes(newer, base.Add(time.Minute), base.Add(time.Minute))).To(Succeed())

			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "*.log"})
			Expect(err).NotTo(HaveOccurred())

			lines := strings.Split(strings.TrimSpace(result.Content), "\n")
			Expect(lines[0]).To(Equal(newer))
			Expect(lines[1]).To(Equal(older))
		})

		it("supports ** for recursive matching", func() {
			nested := filepath.Join(dir, "a", "b")
			Expect(os.MkdirAll(nested, 0755)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(nested, "deep.go"), []byte("x"), 0644)).To(Succeed())

			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "**/*.go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data["count"]).To(Equal(1))
		})

		it("caps results at 50 and sets the truncation flag", func() {
			for i := 0; i < 60; i++ {
				name := filepath.Join(dir, fmt.Sprintf("f%02d.txt", i))
				Expect(os.WriteFile(name, []byte("x"), 0644)).To(Succeed())
			}

			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "*.txt"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Data["count"]).To(Equal(50))
			Expect(result.Data["truncated"]).To(Equal(true))
		})

		it("reports no matches as a successful empty result", func() {
			result, err := tool.Execute(context.Background(), map[string]any{"pattern": "*.nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Success).To(BeTrue())
			Expect(result.Data["count"]).To(Equal(0))
		})
	})
}
