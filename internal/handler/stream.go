package handler

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
)

// SSERehydrator rewrites an upstream Server-Sent-Event stream,
// replacing tokens in content deltas with their original values even
// when a token's textual form is split across event boundaries.
//
// Content text is buffered per content block; only the prefix that
// cannot contain a partial token is emitted, and the held-back tail is
// bounded by the maximum token length. Non-content frames (roles,
// tool-call metadata, finish reasons) pass through verbatim and
// immediately, after any held content for ordering.
type SSERehydrator struct {
	hydrate     func(string) string
	prefix      rune
	suffix      rune
	maxTokenLen int
	counters    *metrics.Counters
	log         *zap.Logger
}

func NewSSERehydrator(hydrate func(string) string, prefix, suffix rune, maxTokenLen int, counters *metrics.Counters, log *zap.Logger) *SSERehydrator {
	return &SSERehydrator{
		hydrate:     hydrate,
		prefix:      prefix,
		suffix:      suffix,
		maxTokenLen: maxTokenLen,
		counters:    counters,
		log:         log,
	}
}

// blockState accumulates one content block's pending text, plus the
// last frame seen for it so held text can be re-emitted in the same
// wire shape.
type blockState struct {
	pending   string
	frame     map[string]any
	kind      string // "chat" or "messages"
	eventName string
}

var sseDataLineRe = regexp.MustCompile(`(?m)^data:\s*(.*)$`)

// Copy streams src to dst, rehydrating content deltas. flush, when
// non-nil, is called after every write so events reach the client
// without buffering delay.
func (r *SSERehydrator) Copy(dst io.Writer, src io.Reader, flush func()) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	blocks := make(map[int]*blockState)
	var event bytes.Buffer

	emit := func(s string) error {
		if _, err := io.WriteString(dst, s); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}

	flushBlock := func(index int, all bool) error {
		b, ok := blocks[index]
		if !ok || b.pending == "" {
			return nil
		}
		cut := len(b.pending)
		if !all {
			cut = r.safeFlushPoint(b.pending)
		}
		if cut == 0 {
			return nil
		}
		out := r.hydrate(b.pending[:cut])
		b.pending = b.pending[cut:]
		return emit(r.encodeFrame(b, out))
	}

	flushAll := func() error {
		for index := range blocks {
			if err := flushBlock(index, true); err != nil {
				return err
			}
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		event.WriteString(line)
		event.WriteByte('\n')
		if line != "" {
			continue
		}

		raw := event.String()
		event.Reset()
		r.counters.StreamEvent()

		data := extractDataLine(raw)
		if data == "" || data == "[DONE]" {
			// Comments, keep-alives, and the OpenAI terminator: flush
			// held text first so ordering is preserved.
			if err := flushAll(); err != nil {
				return err
			}
			if err := emit(raw); err != nil {
				return err
			}
			continue
		}

		index, text, kind, ok := parseContentDelta(data)
		if !ok {
			if err := flushAll(); err != nil {
				return err
			}
			if err := emit(raw); err != nil {
				return err
			}
			continue
		}

		b := blocks[index]
		if b == nil {
			b = &blockState{}
			blocks[index] = b
		}
		b.pending += text
		b.kind = kind
		b.eventName = extractEventName(raw)
		var frame map[string]any
		if err := json.Unmarshal([]byte(data), &frame); err == nil {
			b.frame = frame
		}
		if err := flushBlock(index, false); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		flushAll()
		return fmt.Errorf("sse read: %w", err)
	}

	if err := flushAll(); err != nil {
		return err
	}
	if event.Len() > 0 {
		return emit(event.String())
	}
	return nil
}

// safeFlushPoint returns the byte length of the prefix of s that
// cannot contain a partial token. Only an unclosed opening sentinel
// within one token-length of the end forces text to be held back.
func (r *SSERehydrator) safeFlushPoint(s string) int {
	idx := strings.LastIndex(s, string(r.prefix))
	if idx < 0 {
		return len(s)
	}
	tail := s[idx+len(string(r.prefix)):]
	if strings.ContainsRune(tail, r.suffix) {
		return len(s)
	}
	if utf8.RuneCountInString(s[idx:]) >= r.maxTokenLen {
		// Too long to ever close into a valid token.
		return len(s)
	}
	return idx
}

// encodeFrame re-emits held text in the block's original wire shape.
func (r *SSERehydrator) encodeFrame(b *blockState, text string) string {
	frame := b.frame
	switch b.kind {
	case "messages":
		if frame == nil {
			frame = map[string]any{"type": "content_block_delta", "index": 0}
		}
		delta, _ := frame["delta"].(map[string]any)
		if delta == nil {
			delta = map[string]any{"type": "text_delta"}
			frame["delta"] = delta
		}
		delta["text"] = text
	default:
		if frame == nil {
			frame = map[string]any{"choices": []any{map[string]any{"index": 0, "delta": map[string]any{}}}}
		}
		if choices, _ := frame["choices"].([]any); len(choices) > 0 {
			if choice, _ := choices[0].(map[string]any); choice != nil {
				delta, _ := choice["delta"].(map[string]any)
				if delta == nil {
					delta = map[string]any{}
					choice["delta"] = delta
				}
				delta["content"] = text
			}
		}
	}

	encoded, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("failed to encode rehydrated frame", zap.Error(err))
		return ""
	}
	if b.eventName != "" {
		return fmt.Sprintf("event: %s\ndata: %s\n\n", b.eventName, encoded)
	}
	return fmt.Sprintf("data: %s\n\n", encoded)
}

// parseContentDelta recognizes the two upstream delta shapes and
// returns the block index, the delta text, and the wire kind.
func parseContentDelta(data string) (index int, text, kind string, ok bool) {
	if gjson.Get(data, "type").String() == "content_block_delta" &&
		gjson.Get(data, "delta.type").String() == "text_delta" {
		if t := gjson.Get(data, "delta.text"); t.Exists() {
			return int(gjson.Get(data, "index").Int()), t.String(), "messages", true
		}
	}

	content := gjson.Get(data, "choices.0.delta.content")
	finish := gjson.Get(data, "choices.0.finish_reason")
	role := gjson.Get(data, "choices.0.delta.role")
	// finish_reason is present-but-null on ordinary chunks; only a
	// real value marks a terminal frame.
	if content.Type == gjson.String && finish.Type == gjson.Null && role.Type != gjson.String {
		return int(gjson.Get(data, "choices.0.index").Int()), content.String(), "chat", true
	}
	return 0, "", "", false
}

func extractDataLine(event string) string {
	m := sseDataLineRe.FindStringSubmatch(event)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func extractEventName(event string) string {
	for _, line := range strings.Split(event, "\n") {
		if name, ok := strings.CutPrefix(line, "event:"); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}
