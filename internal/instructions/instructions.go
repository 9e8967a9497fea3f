// Package instructions composes the system prompt for a chat turn.
package instructions

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knowsee/knowsee/internal/commerce"
	"github.com/knowsee/knowsee/internal/models"
)

// OverrideFileName, when found in the working directory or one of its
// parents, replaces the built-in identity prompt.
const OverrideFileName = "KNOWSEE.md"

type Mode string

const (
	ModeStandard Mode = "standard"
	ModeCommerce Mode = "commerce"
)

// ParseMode maps unknown or empty values to ModeStandard.
func ParseMode(raw string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(raw))) == ModeCommerce {
		return ModeCommerce
	}
	return ModeStandard
}

//go:embed prompts/*.md
var prompts embed.FS

var (
	identityTemplate = load("identity.md")
	artifactsPrompt  = load("artifacts.md")
	commercePrompt   = load("commerce.md")
)

func load(name string) string {
	data, err := prompts.ReadFile("prompts/" + name)
	if err != nil {
		panic(err)
	}
	return strings.TrimSpace(string(data))
}

// RequestHints describe where a request came from. Empty fields are left
// blank in the prompt.
type RequestHints struct {
	Latitude  string
	Longitude string
	City      string
	Country   string
}

func (h RequestHints) prompt() string {
	return "About the origin of user's request:\n" +
		"- lat: " + h.Latitude + "\n" +
		"- lon: " + h.Longitude + "\n" +
		"- city: " + h.City + "\n" +
		"- country: " + h.Country + "\n"
}

type Options struct {
	Mode     Mode
	Model    string
	Hints    RequestHints
	Now      time.Time
	Identity string
}

// FormatDate renders t in en-GB long form, e.g. "5 March 2026".
func FormatDate(t time.Time) string {
	return t.Format("2 January 2006")
}

func injectContext(template string, vars map[string]string) string {
	for key, value := range vars {
		template = strings.ReplaceAll(template, "{{"+key+"}}", value)
	}
	return template
}

// SystemPrompt joins the identity prompt, the request hints and, for models
// that can call tools, the document and commerce guidance.
func SystemPrompt(opts Options) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	identity := opts.Identity
	if identity == "" {
		identity = identityTemplate
	}
	sections := []string{
		injectContext(identity, map[string]string{"current_date": FormatDate(now)}),
		opts.Hints.prompt(),
	}
	if models.IsReasoning(opts.Model) {
		return strings.Join(sections, "\n\n")
	}
	sections = append(sections, artifactsPrompt)
	if opts.Mode == ModeCommerce {
		sections = append(sections, commercePrompt)
	}
	return strings.Join(sections, "\n\n")
}

var (
	standardTools = []string{"createDocument", "updateDocument", "requestSuggestions", "web_search", "web_fetch"}
	commerceTools = []string{commerce.ToolBrowseSite, commerce.ToolExtractProduct, commerce.ToolAnalyseCommerce}
)

// ToolNames lists the tools a turn may use. Reasoning models get none and
// the commerce tools are only offered in commerce mode.
func ToolNames(mode Mode, model string) []string {
	if models.IsReasoning(model) {
		return []string{}
	}
	names := append([]string(nil), standardTools...)
	if mode == ModeCommerce {
		names = append(names, commerceTools...)
	}
	return names
}

// ReadOverride looks for OverrideFileName from the working directory up.
func ReadOverride() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	path, err := findInParents(cwd, OverrideFileName)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func findInParents(startDir string, filename string) (string, error) {
	dir := startDir
	for {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
