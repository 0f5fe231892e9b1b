package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	narrMu  sync.Mutex
	narrLog *log.Logger
)

// SetNarratorWriter routes raw narrator request/response payloads to a
// dedicated writer. Pass nil to disable the dump.
func SetNarratorWriter(w io.Writer) {
	narrMu.Lock()
	defer narrMu.Unlock()
	if w == nil {
		narrLog = nil
		return
	}
	narrLog = log.New(w, "", log.LstdFlags)
}

type narrSection struct {
	Title string
	Body  string
}

func logNarration(productID, decisionID string, sections []narrSection) {
	narrMu.Lock()
	logger := narrLog
	narrMu.Unlock()
	if logger == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[NARRATOR]")
	if productID != "" {
		b.WriteString("[")
		b.WriteString(productID)
		b.WriteString("]")
	}
	if decisionID != "" {
		b.WriteString("[")
		b.WriteString(decisionID)
		b.WriteString("]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.Title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- ")
		b.WriteString(t)
		b.WriteString(" ---\n")
		b.WriteString(sec.Body)
		if !strings.HasSuffix(sec.Body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	logger.Print(b.String())
}

// LogNarrationRequest dumps the reasoning chain payload sent to the narrator.
func LogNarrationRequest(productID, decisionID, payload string) {
	logNarration(productID, decisionID, []narrSection{{Title: "REQUEST", Body: payload}})
}

// LogNarrationResponse dumps the narrator's raw reply (or the error text).
func LogNarrationResponse(productID, decisionID, raw string, err error) {
	sections := []narrSection{{Title: "RESPONSE", Body: raw}}
	if err != nil {
		sections = append(sections, narrSection{Title: "ERROR", Body: err.Error()})
	}
	logNarration(productID, decisionID, sections)
}
