package platform

import (
	"net/url"
	"strings"
)

// graphEntities is the fixed Microsoft Graph entity vocabulary the resource
// parser understands. A path segment matching one of these names starts a
// new entity; anything else is treated as the value of the entity before it.
var graphEntities = map[string]bool{
	"teams":       true,
	"channels":    true,
	"chats":       true,
	"messages":    true,
	"replies":     true,
	"users":       true,
	"me":          true,
	"drives":      true,
	"sites":       true,
	"events":      true,
	"mailFolders": true,
}

// ParseResource tokenizes a Graph change-notification resource path into a
// map from entity name to the ordered values seen for it. Both segment
// forms are accepted:
//
//	/teams('team-123')/channels('19%3Aabc')/messages('169:root')
//	/teams/team-123/channels/19:abc/messages/169:root
//
// Values are percent-decoded. Repeated entities accumulate in order. The
// "me" segment carries no value of its own and is recorded as "me", since
// it identifies the signed-in mailbox. Malformed or empty input yields an
// empty map; ParseResource never fails.
func ParseResource(resource string) map[string][]string {
	tokens := map[string][]string{}
	segments := strings.Split(strings.Trim(resource, "/"), "/")

	pending := "" // entity name waiting for a bare value segment
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if name, value, ok := splitKeyedSegment(seg); ok {
			if graphEntities[name] {
				tokens[name] = append(tokens[name], decodeValue(value))
				pending = ""
			}
			continue
		}
		if graphEntities[seg] {
			if seg == "me" {
				tokens["me"] = append(tokens["me"], "me")
				pending = ""
				continue
			}
			pending = seg
			continue
		}
		if pending != "" {
			tokens[pending] = append(tokens[pending], decodeValue(seg))
			pending = ""
		}
	}
	return tokens
}

// splitKeyedSegment parses the OData key form name('value') or name("value").
func splitKeyedSegment(seg string) (name, value string, ok bool) {
	open := strings.IndexByte(seg, '(')
	if open <= 0 || !strings.HasSuffix(seg, ")") {
		return "", "", false
	}
	name = seg[:open]
	inner := seg[open+1 : len(seg)-1]
	if len(inner) >= 2 {
		if (inner[0] == '\'' && inner[len(inner)-1] == '\'') ||
			(inner[0] == '"' && inner[len(inner)-1] == '"') {
			inner = inner[1 : len(inner)-1]
		}
	}
	return name, inner, true
}

func decodeValue(v string) string {
	decoded, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return decoded
}
