package frond

import "strings"

// Directive markers recognized by the block parser. Block regions may nest,
// so close tags are matched by depth rather than by first occurrence.
const (
	extendOpen  = `{{extend "`
	extendClose = `"}}`
	blockOpen   = `{{block "`
	blockClose  = "{{/block}}"
)

// block is a named region extracted from a template body. Depth records the
// nesting level at which the block was found (0 = top of the body). Blocks
// are transient parse artifacts consumed by inheritance resolution.
type block struct {
	name    string
	content string
	depth   int
}

// scanExtend returns the parent template named by the first extend
// directive in body. At most one extend is meaningful; the first wins.
func scanExtend(body string) (string, bool) {
	start := strings.Index(body, extendOpen)
	if start == -1 {
		return "", false
	}
	rest := body[start+len(extendOpen):]
	end := strings.Index(rest, extendClose)
	if end == -1 {
		return "", false
	}
	return rest[:end], true
}

// stripExtend removes every extend directive from body, leaving the
// surrounding text untouched.
func stripExtend(body string) string {
	for {
		start := strings.Index(body, extendOpen)
		if start == -1 {
			return body
		}
		rest := body[start+len(extendOpen):]
		end := strings.Index(rest, extendClose)
		if end == -1 {
			return body
		}
		body = body[:start] + rest[end+len(extendClose):]
	}
}

// parseBlocks extracts every block region from body, including blocks nested
// inside other blocks. A nested block's markers stay intact inside its
// parent's content. Unterminated blocks are returned in malformed and left
// out of the result rather than failing the caller.
func parseBlocks(body string) (blocks []block, malformed []string) {
	blocks, malformed = scanBlocks(body, 0, nil, nil)
	return blocks, malformed
}

func scanBlocks(body string, depth int, blocks []block, malformed []string) ([]block, []string) {
	pos := 0
	for {
		name, contentStart, ok := nextBlockOpen(body, pos)
		if !ok {
			if contentStart >= 0 {
				// Open marker with a broken name tag; nothing more to parse.
				snippet := body[contentStart:]
				if len(snippet) > 24 {
					snippet = snippet[:24]
				}
				malformed = append(malformed, snippet)
			}
			return blocks, malformed
		}
		end, found := matchBlockClose(body, contentStart)
		if !found {
			malformed = append(malformed, name)
			pos = contentStart
			continue
		}
		content := body[contentStart:end]
		blocks = append(blocks, block{name: name, content: content, depth: depth})
		blocks, malformed = scanBlocks(content, depth+1, blocks, malformed)
		pos = end + len(blockClose)
	}
}

// nextBlockOpen finds the next block open marker at or after pos. It
// returns the block name and the offset where the block content starts.
// When no marker remains it returns ok=false with contentStart=-1; a marker
// whose name tag is unterminated returns ok=false with contentStart set to
// the marker offset.
func nextBlockOpen(body string, pos int) (name string, contentStart int, ok bool) {
	open := strings.Index(body[pos:], blockOpen)
	if open == -1 {
		return "", -1, false
	}
	open += pos
	nameStart := open + len(blockOpen)
	nameEnd := strings.Index(body[nameStart:], `"}}`)
	if nameEnd == -1 {
		return "", open, false
	}
	return body[nameStart : nameStart+nameEnd], nameStart + nameEnd + len(`"}}`), true
}

// matchBlockClose returns the offset of the close marker matching a block
// whose content starts at from. Each open marker encountered on the way
// increments depth and each close marker decrements it; the region closes
// when depth returns to the level it was opened at. A naive first-close
// match would mis-pair nested blocks.
func matchBlockClose(body string, from int) (int, bool) {
	depth := 0
	pos := from
	for {
		nextOpen := strings.Index(body[pos:], blockOpen)
		nextClose := strings.Index(body[pos:], blockClose)
		if nextClose == -1 {
			return 0, false
		}
		if nextOpen != -1 && nextOpen < nextClose {
			depth++
			pos += nextOpen + len(blockOpen)
			continue
		}
		if depth == 0 {
			return pos + nextClose, true
		}
		depth--
		pos += nextClose + len(blockClose)
	}
}
