package platform

import (
	"reflect"
	"testing"
)

func TestParseResource_KeyedSegments(t *testing.T) {
	tokens := ParseResource("/teams('team-123')/channels('19%3Aabc')/messages('169:root-msg')")

	want := map[string][]string{
		"teams":    {"team-123"},
		"channels": {"19:abc"},
		"messages": {"169:root-msg"},
	}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("ParseResource mismatch:\n got %v\nwant %v", tokens, want)
	}
}

func TestParseResource_BareValueSegments(t *testing.T) {
	tokens := ParseResource("/teams/team-123/channels/19%3Aabc/messages/169:root-msg")

	if got := tokens["teams"]; len(got) != 1 || got[0] != "team-123" {
		t.Errorf("teams = %v, want [team-123]", got)
	}
	if got := tokens["channels"]; len(got) != 1 || got[0] != "19:abc" {
		t.Errorf("channels = %v, want [19:abc]", got)
	}
	if got := tokens["messages"]; len(got) != 1 || got[0] != "169:root-msg" {
		t.Errorf("messages = %v, want [169:root-msg]", got)
	}
}

func TestParseResource_MixedFormsAndRepeats(t *testing.T) {
	tokens := ParseResource("/teams('t1')/channels/c1/channels('c2')/messages('m1')/replies('m2')")

	if want := []string{"c1", "c2"}; !reflect.DeepEqual(tokens["channels"], want) {
		t.Errorf("channels = %v, want %v", tokens["channels"], want)
	}
	if want := []string{"m2"}; !reflect.DeepEqual(tokens["replies"], want) {
		t.Errorf("replies = %v, want %v", tokens["replies"], want)
	}
}

func TestParseResource_UsersPercentDecoded(t *testing.T) {
	tokens := ParseResource("/users('user%40example.com')/messages('AAMkAGI2AAA=')")

	if got := tokens["users"]; len(got) != 1 || got[0] != "user@example.com" {
		t.Errorf("users = %v, want [user@example.com]", got)
	}
	if got := tokens["messages"]; len(got) != 1 || got[0] != "AAMkAGI2AAA=" {
		t.Errorf("messages = %v, want [AAMkAGI2AAA=]", got)
	}
}

func TestParseResource_MeSegment(t *testing.T) {
	tokens := ParseResource("/me/messages('AAMk=')")

	if got := tokens["me"]; len(got) != 1 || got[0] != "me" {
		t.Errorf("me = %v, want [me]", got)
	}
}

func TestParseResource_DoubleQuotedValue(t *testing.T) {
	tokens := ParseResource(`/chats("19:chat@thread.v2")/messages("m1")`)

	if got := tokens["chats"]; len(got) != 1 || got[0] != "19:chat@thread.v2" {
		t.Errorf("chats = %v, want [19:chat@thread.v2]", got)
	}
}

func TestParseResource_Malformed(t *testing.T) {
	cases := []string{
		"",
		"/",
		"///",
		"garbage with spaces",
		"/unknownEntity('x')/another('y')",
		"/teams(", // unterminated key form is skipped, not fatal
	}
	for _, resource := range cases {
		tokens := ParseResource(resource)
		if len(tokens) != 0 {
			t.Errorf("ParseResource(%q) = %v, want empty map", resource, tokens)
		}
	}
}

func TestParseResource_UnknownEntityDoesNotConsumeValue(t *testing.T) {
	// "widgets" is not in the vocabulary; its apparent value must not be
	// attributed to any known entity.
	tokens := ParseResource("/widgets/w1/teams('t1')")

	want := map[string][]string{"teams": {"t1"}}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("tokens = %v, want %v", tokens, want)
	}
}

// Round-trip property from a generated alternating name/value path: every
// value is recovered under its entity name, percent-decoded.
func TestParseResource_RoundTrip(t *testing.T) {
	entities := []string{"teams", "channels", "chats", "messages", "users"}
	values := []string{"plain", "19%3Aabc", "a b%20c", "x@y.z"}
	decoded := []string{"plain", "19:abc", "a b c", "x@y.z"}

	for i, entity := range entities {
		value := values[i%len(values)]
		wantValue := decoded[i%len(values)]

		for _, form := range []string{
			"/" + entity + "('" + value + "')",
			"/" + entity + "/" + value,
		} {
			tokens := ParseResource(form)
			got := tokens[entity]
			if len(got) != 1 || got[0] != wantValue {
				t.Errorf("ParseResource(%q)[%s] = %v, want [%s]", form, entity, got, wantValue)
			}
		}
	}
}
