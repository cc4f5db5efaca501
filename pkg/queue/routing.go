package queue

import "strings"

type ExchangeKind string

const (
	ExchangeDirect ExchangeKind = "direct"
	ExchangeTopic  ExchangeKind = "topic"
)

func (k ExchangeKind) valid() bool {
	return k == ExchangeDirect || k == ExchangeTopic
}

// Matches reports whether a message published with routingKey is delivered to a
// binding with bindingKey. Direct exchanges compare keys for equality. Topic
// exchanges split both keys on '.', where '*' matches exactly one word and '#'
// matches zero or more words.
func (k ExchangeKind) Matches(bindingKey, routingKey string) bool {
	if k == ExchangeDirect {
		return bindingKey == routingKey
	}
	return matchWords(strings.Split(bindingKey, "."), splitRoutingKey(routingKey))
}

func splitRoutingKey(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, ".")
}

func matchWords(pattern, words []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(words); i++ {
				if matchWords(rest, words[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(words) == 0 {
				return false
			}
		default:
			if len(words) == 0 || words[0] != pattern[0] {
				return false
			}
		}
		pattern, words = pattern[1:], words[1:]
	}
	return len(words) == 0
}
