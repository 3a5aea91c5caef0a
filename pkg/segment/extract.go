package segment

import "strconv"

// forward-kind segments disagree across gateway implementations about which
// attribute key carries the opaque forward id.
var forwardIDKeys = []string{"id", "forward_id", "res_id", "file"}

// ExtractForwardIDs collects ids from forward-kind segments, trying each
// candidate key in order and taking the first present per segment.
func ExtractForwardIDs(segs []Segment) []string {
	var ids []string
	for _, s := range segs {
		if s.Kind != KindForward {
			continue
		}
		for _, key := range forwardIDKeys {
			if v := s.Str(key); v != "" {
				ids = append(ids, v)
				break
			}
		}
	}
	return ids
}

// sender-shaped maps from the gateway disagree on which key carries the
// numeric user id.
var senderIDKeys = []string{"user_id", "uin", "qq", "id", "uid", "userId"}

// ExtractSenderUserID applies the same fallback chain to a raw sender map,
// returning 0 when no candidate key is present or parseable.
func ExtractSenderUserID(m map[string]any) int64 {
	for _, key := range senderIDKeys {
		if v, ok := m[key]; ok {
			if id, ok := toInt64(v); ok {
				return id
			}
		}
	}
	return 0
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
