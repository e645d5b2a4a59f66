// Copyright 2024-2026 Aiku AI

package connector

import (
	"fmt"
	"strings"
	"text/template"

	"go.mau.fi/whatsmeow"
	"gopkg.in/yaml.v3"
)

// Config holds the WhatsApp connector configuration.
type Config struct {
	// SessionsDir is the parent directory of the per-request session
	// directories. Each directory holds the device store and creds.json.
	SessionsDir string `yaml:"sessions_dir" koanf:"sessions_dir"`
	// Browser and OSName make up the companion identity shown on the phone
	// in "Linked devices", e.g. "Safari (Mac OS)".
	Browser          string `yaml:"browser" koanf:"browser"`
	OSName           string `yaml:"os_name" koanf:"os_name"`
	PushNotification bool   `yaml:"push_notification" koanf:"push_notification"`

	ImageURL        string `yaml:"image_url" koanf:"image_url"`
	CaptionTemplate string `yaml:"caption_template" koanf:"caption_template"`
	Warning         string `yaml:"warning" koanf:"warning"`

	captionTemplate *template.Template `yaml:"-"`
}

// CaptionParams holds the parameters for rendering the session caption.
type CaptionParams struct {
	SessionID string
	Number    string
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

func (c *Config) PostProcess() error {
	if _, ok := browserTypes[strings.ToLower(c.Browser)]; !ok && c.Browser != "" {
		return fmt.Errorf("unknown browser %q", c.Browser)
	}
	var err error
	c.captionTemplate, err = template.New("caption").Parse(c.CaptionTemplate)
	return err
}

var browserTypes = map[string]whatsmeow.PairClientType{
	"chrome":   whatsmeow.PairClientChrome,
	"edge":     whatsmeow.PairClientEdge,
	"firefox":  whatsmeow.PairClientFirefox,
	"ie":       whatsmeow.PairClientIE,
	"opera":    whatsmeow.PairClientOpera,
	"safari":   whatsmeow.PairClientSafari,
	"electron": whatsmeow.PairClientElectron,
	"uwp":      whatsmeow.PairClientUWP,
}

var browserNames = map[string]string{
	"chrome":   "Chrome",
	"edge":     "Edge",
	"firefox":  "Firefox",
	"ie":       "IE",
	"opera":    "Opera",
	"safari":   "Safari",
	"electron": "Electron",
	"uwp":      "UWP",
}

// PairClient returns the client type and display name announced when
// requesting a pairing code. Unknown or empty browsers fall back to Safari.
func (c *Config) PairClient() (whatsmeow.PairClientType, string) {
	key := strings.ToLower(c.Browser)
	clientType, ok := browserTypes[key]
	if !ok {
		key = "safari"
		clientType = whatsmeow.PairClientSafari
	}
	osName := c.OSName
	if osName == "" {
		osName = "Mac OS"
	}
	return clientType, fmt.Sprintf("%s (%s)", browserNames[key], osName)
}

// FormatCaption renders the caption sent with the session image. The bare
// session ID is returned if the template is missing or fails.
func (c *Config) FormatCaption(params CaptionParams) string {
	if c.captionTemplate == nil {
		return params.SessionID
	}
	var buf []byte
	err := c.captionTemplate.Execute(
		(*templateBuffer)(&buf),
		params,
	)
	if err != nil {
		return params.SessionID
	}
	return string(buf)
}

// templateBuffer is a simple io.Writer that appends to a byte slice.
type templateBuffer []byte

func (b *templateBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
