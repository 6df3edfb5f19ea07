package agent

import (
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/sclevine/spec"
	"github.com/sclevine/spec/report"
)

func TestUnitTracker(t *testing.T) {
	spec.Run(t, "Tracker", testTracker, spec.Report(report.Terminal{}))
}

func testTracker(t *testing.T, when spec.G, it spec.S) {
	var tracker *Tracker

	it.Before(func() {
		RegisterTestingT(t)
		tracker = NewTracker()
	})

	when("a session runs through its lifecycle", func() {
		it("records actions and terminal status", func() {
			id := tracker.CreateSession("enumerate the target")

			actionID := tracker.AddAction(id, "bash", map[string]any{"command": "nmap -sV host"})
			session, ok := tracker.GetSession(id)
			Expect(ok).To(BeTrue())
			Expect(session.Status).To(Equal(SessionRunning))
			Expect(session.Actions).To(HaveLen(1))
			Expect(session.Actions[0].Status).To(Equal(ActionRunning))

			tracker.CompleteAction(id, actionID, true)
			tracker.CompleteSession(id, true)

			session, _ = tracker.GetSession(id)
			Expect(session.Actions[0].Status).To(Equal(ActionCompleted))
			Expect(session.Status).To(Equal(SessionCompleted))
		})

		it("never reverts a terminal action status", func() {
			id := tracker.CreateSession("x")
			actionID := tracker.AddAction(id, "bash", nil)

			tracker.CompleteAction(id, actionID, false)
			tracker.CompleteAction(id, actionID, true)

			session, _ := tracker.GetSession(id)
			Expect(session.Actions[0].Status).To(Equal(ActionError))
		})

		it("retains sessions until explicitly cleared", func() {
			id := tracker.CreateSession("x")
			tracker.CompleteSession(id, true)

			Expect(tracker.GetAllSessions()).To(HaveLen(1))
			tracker.ClearSession(id)
			Expect(tracker.GetAllSessions()).To(BeEmpty())
			_, ok := tracker.GetSession(id)
			Expect(ok).To(BeFalse())
		})
	})

	when("subscribers are attached", func() {
		it("notifies the affected session id on every mutation", func() {
			updates, cancel := tracker.Subscribe()
			defer cancel()

			id := tracker.CreateSession("x")
			Expect(<-updates).To(Equal(id))

			actionID := tracker.AddAction(id, "read", map[string]any{"file_path": "/etc/passwd"})
			Expect(<-updates).To(Equal(id))

			tracker.CompleteAction(id, actionID, true)
			Expect(<-updates).To(Equal(id))

			tracker.CompleteSession(id, true)
			Expect(<-updates).To(Equal(id))
		})
	})

	when("deriving display text", func() {
		it("truncates long shell commands", func() {
			long := strings.Repeat("a", 80)
			text := displayText("bash", map[string]any{"command": long})
			Expect(text).To(HavePrefix("bash: "))
			Expect(text).To(HaveSuffix("…"))
			Expect(len(text)).To(BeNumerically("<", 70))
		})

		it("uses the basename for file tools", func() {
			text := displayText("read", map[string]any{"file_path": "/var/log/auth.log"})
			Expect(text).To(Equal("read: auth.log"))
		})

		it("falls back to the tool name without a key argument", func() {
			Expect(displayText("bash", nil)).To(Equal("bash"))
		})
	})
}
