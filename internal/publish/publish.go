// package publish maps a derived status onto one of the configured output
// formats and delivers it to the sink.
//
// Sink failures are logged and swallowed; nothing here may take down the
// poll loop or an HTTP handler.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Mode selects the serialized form written to the sink.
type Mode string

const (
	// ModePlain writes the bare summary string.
	ModePlain Mode = "plain"
	// ModeGenmon writes the three-field status-bar markup record.
	ModeGenmon Mode = "genmon"
	// ModeNotify forwards a normalized summary to a network sink,
	// suppressing consecutive duplicates.
	ModeNotify Mode = "notify"
)

// ParseMode validates a configured mode string, defaulting empty to plain.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePlain, ModeGenmon, ModeNotify:
		return Mode(s), nil
	case "":
		return ModePlain, nil
	default:
		return "", fmt.Errorf("unknown publish mode %q", s)
	}
}

// Status is the derived (summary, detail) pair handed to the publisher.
type Status struct {
	// Summary is the one-line human-readable status.
	Summary string
	// Badge is a short prefix shown before the summary in markup mode,
	// e.g. an event count.
	Badge string
	// Detail holds tooltip lines for richer rendering.
	Detail []string
}

// Publisher writes rendered statuses to a file sink or notify target.
type Publisher struct {
	mode       Mode
	path       string
	iconPath   string
	notifyURL  string
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	lastSent string
}

// New creates a Publisher. path is the sink file for the file-backed modes;
// notifyURL is the network target for [ModeNotify].
func New(mode Mode, path, iconPath, notifyURL string, logger *log.Logger) *Publisher {
	return &Publisher{
		mode:       mode,
		path:       path,
		iconPath:   iconPath,
		notifyURL:  notifyURL,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// SetHTTPClient overrides the notify transport, used by tests.
func (p *Publisher) SetHTTPClient(c *http.Client) {
	p.httpClient = c
}

// Publish renders st in the configured mode and delivers it. Errors are
// logged, never returned.
func (p *Publisher) Publish(ctx context.Context, st Status) {
	switch p.mode {
	case ModeGenmon:
		p.writeFile(RenderGenmon(st, p.iconPath))
	case ModeNotify:
		p.notify(ctx, st)
	default:
		p.writeFile(RenderPlain(st))
	}
}

func (p *Publisher) writeFile(content string) {
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			p.logger.Warn("failed to create sink directory", "path", p.path, "error", err)
			return
		}
	}
	if err := os.WriteFile(p.path, []byte(content), 0644); err != nil {
		p.logger.Warn("failed to write sink file", "path", p.path, "error", err)
	}
}

func (p *Publisher) notify(ctx context.Context, st Status) {
	message := NormalizeSummary(st.Summary)

	p.mu.Lock()
	if message == p.lastSent {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	form := url.Values{}
	form.Set("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.notifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		p.logger.Warn("failed to build notify request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("failed to send notification", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("notify sink rejected message", "status", resp.StatusCode)
		return
	}

	p.mu.Lock()
	p.lastSent = message
	p.mu.Unlock()
}

// RenderPlain serializes the summary only.
func RenderPlain(st Status) string {
	return st.Summary
}

// RenderGenmon serializes the three-field markup record the status-bar host
// expects. Literal ampersands are neutralized because the consumer's markup
// parser treats them specially. A status with no detail degrades to the
// bare summary, matching how the host renders error strings.
func RenderGenmon(st Status, iconPath string) string {
	if len(st.Detail) == 0 && st.Badge == "" {
		return neutralize(st.Summary)
	}

	text := st.Summary
	if st.Badge != "" {
		text = st.Badge + " " + st.Summary
	}
	tooltip := strings.Join(st.Detail, "\n")

	record := fmt.Sprintf("<img>%s</img><txt>  %s</txt><tool>%s</tool>", iconPath, text, tooltip)
	return neutralize(record)
}

// suffixNoise lists track-title decorations stripped before notifying.
var suffixNoise = []string{
	" - Edit",
	" - Original Mix",
	" - Radio Edit",
	" - Remastered",
}

// NormalizeSummary prepares a summary for the notify sink: diacritics are
// stripped and known suffix noise removed.
func NormalizeSummary(s string) string {
	for _, noise := range suffixNoise {
		if i := strings.Index(s, noise); i > 0 {
			s = s[:i]
		}
	}

	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, s)
	if err != nil {
		return s
	}
	return stripped
}

func neutralize(s string) string {
	return strings.ReplaceAll(s, "&", "+")
}
