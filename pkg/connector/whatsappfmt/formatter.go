// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package whatsappfmt converts Markdown and simple HTML to WhatsApp markup.
//
// WhatsApp already uses single-asterisk bold and single-underscore italics,
// so text written in WhatsApp markup passes through unchanged.
package whatsappfmt

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

var (
	strongRe     = regexp.MustCompile(`(?s)<(?:strong|b)>(.*?)</(?:strong|b)>`)
	emRe         = regexp.MustCompile(`(?s)<(?:em|i)>(.*?)</(?:em|i)>`)
	delRe        = regexp.MustCompile(`(?s)<(?:del|s|strike)>(.*?)</(?:del|s|strike)>`)
	codeRe       = regexp.MustCompile(`<code>(.*?)</code>`)
	preRe        = regexp.MustCompile(`(?s)<pre><code[^>]*>(.*?)</code></pre>`)
	linkRe       = regexp.MustCompile(`<a href="([^"]+)"[^>]*>(.*?)</a>`)
	brRe         = regexp.MustCompile(`<br\s*/?>`)
	blockquoteRe = regexp.MustCompile(`(?s)<blockquote>(.*?)</blockquote>`)
	headingRe    = regexp.MustCompile(`<h[1-6]>(.*?)</h[1-6]>`)
	ulRe         = regexp.MustCompile(`(?s)<ul>(.*?)</ul>`)
	olRe         = regexp.MustCompile(`(?s)<ol>(.*?)</ol>`)
	liRe         = regexp.MustCompile(`(?s)<li>(.*?)</li>`)
	pRe          = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	tagRe        = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

	mdCodeBlockRe = regexp.MustCompile("(?s)```\\w*\\n?(.*?)```")
	mdBoldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdUnderBoldRe = regexp.MustCompile(`__(.+?)__`)
	mdStrikeRe    = regexp.MustCompile(`~~(.+?)~~`)
	mdLinkRe      = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	mdHeadingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
)

// Parse converts text to WhatsApp markup.
func Parse(text string) string {
	if text == "" {
		return ""
	}
	if strings.Contains(text, "<") {
		text = parseHTML(text)
	}
	return parseMarkdown(text)
}

func parseHTML(text string) string {
	// Code blocks first (preserve content inside).
	text = preRe.ReplaceAllString(text, "```$1```")
	text = codeRe.ReplaceAllString(text, "`$1`")

	text = strongRe.ReplaceAllString(text, "*$1*")
	text = emRe.ReplaceAllString(text, "_${1}_")
	text = delRe.ReplaceAllString(text, "~$1~")

	text = linkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := linkRe.FindStringSubmatch(match)
		return formatLink(parts[2], parts[1])
	})

	text = headingRe.ReplaceAllString(text, "*$1*")

	text = blockquoteRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := blockquoteRe.FindStringSubmatch(match)
		lines := strings.Split(strings.TrimSpace(parts[1]), "\n")
		for i, line := range lines {
			lines[i] = "> " + strings.TrimSpace(line)
		}
		return strings.Join(lines, "\n")
	})

	text = ulRe.ReplaceAllStringFunc(text, func(match string) string {
		items := liRe.FindAllStringSubmatch(match, -1)
		result := make([]string, 0, len(items))
		for _, item := range items {
			result = append(result, "• "+strings.TrimSpace(item[1]))
		}
		return strings.Join(result, "\n")
	})

	text = olRe.ReplaceAllStringFunc(text, func(match string) string {
		items := liRe.FindAllStringSubmatch(match, -1)
		result := make([]string, 0, len(items))
		for i, item := range items {
			result = append(result, strconv.Itoa(i+1)+". "+strings.TrimSpace(item[1]))
		}
		return strings.Join(result, "\n")
	})

	text = pRe.ReplaceAllString(text, "$1\n\n")
	text = brRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, "")

	return strings.TrimSpace(html.UnescapeString(text))
}

func parseMarkdown(text string) string {
	// Extract code blocks into placeholders so inline rules skip them.
	var codeBlocks []string
	text = mdCodeBlockRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := mdCodeBlockRe.FindStringSubmatch(match)
		idx := len(codeBlocks)
		codeBlocks = append(codeBlocks, "```"+parts[1]+"```")
		return "\x00CODEBLOCK" + strconv.Itoa(idx) + "\x00"
	})

	text = mdHeadingRe.ReplaceAllString(text, "*$1*")
	text = mdBoldRe.ReplaceAllString(text, "*$1*")
	text = mdUnderBoldRe.ReplaceAllString(text, "*$1*")
	text = mdStrikeRe.ReplaceAllString(text, "~$1~")
	text = mdLinkRe.ReplaceAllStringFunc(text, func(match string) string {
		parts := mdLinkRe.FindStringSubmatch(match)
		return formatLink(parts[1], parts[2])
	})

	for i, block := range codeBlocks {
		text = strings.Replace(text, "\x00CODEBLOCK"+strconv.Itoa(i)+"\x00", block, 1)
	}
	return text
}

// formatLink renders a link as "label (url)". WhatsApp linkifies bare URLs
// but has no syntax for labelled links. Unsafe schemes drop the URL.
func formatLink(label, href string) string {
	lower := strings.ToLower(strings.TrimSpace(href))
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") && !strings.HasPrefix(lower, "mailto:") {
		return label
	}
	if label == href || strings.TrimPrefix(strings.TrimPrefix(href, "https://"), "http://") == label {
		return href
	}
	return label + " (" + href + ")"
}
