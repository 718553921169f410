package stage

import "testing"

func TestExtractJSON_DirectParse(t *testing.T) {
	got, err := ExtractJSON(`{"action":"scale"}`)
	if err != nil {
		t.Fatalf("ExtractJSON() err = %v", err)
	}
	if string(got) != `{"action":"scale"}` {
		t.Fatalf("got = %s", got)
	}
}

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Here is the plan:\n```json\n{\"action\":\"scale\",\"replicas\":3}\n```\nLet me know if you need changes."
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() err = %v", err)
	}
	if string(got) != `{"action":"scale","replicas":3}` {
		t.Fatalf("got = %s", got)
	}
}

func TestExtractJSON_FirstBalancedBrace(t *testing.T) {
	text := `Sure, my answer is {"venues": [{"name": "Park Cafe"}]} and that's final.`
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() err = %v", err)
	}
	if string(got) != `{"venues": [{"name": "Park Cafe"}]}` {
		t.Fatalf("got = %s", got)
	}
}

func TestExtractJSON_NestedBracesAndStrings(t *testing.T) {
	text := `prefix {"a": {"b": "c}d"}, "e": 1} suffix`
	got, err := ExtractJSON(text)
	if err != nil {
		t.Fatalf("ExtractJSON() err = %v", err)
	}
	if string(got) != `{"a": {"b": "c}d"}, "e": 1}` {
		t.Fatalf("got = %s", got)
	}
}

func TestExtractJSON_NoPayload(t *testing.T) {
	_, err := ExtractJSON("I cannot produce a structured answer right now.")
	if err == nil {
		t.Fatal("expected an error when no JSON payload is present")
	}
}
