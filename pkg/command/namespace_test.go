package command

import (
	"reflect"
	"testing"
)

func TestStripPrefix(t *testing.T) {
	ns := Namespace{Prefixes: []string{"/", "#"}, Separators: []string{" "}}

	rest, ok := ns.StripPrefix("/recall 3 123")
	if !ok || rest != "recall 3 123" {
		t.Fatalf("got (%q, %v)", rest, ok)
	}

	if _, ok := ns.StripPrefix("hello world"); ok {
		t.Fatalf("expected no prefix match")
	}
}

func TestSplit(t *testing.T) {
	ns := Namespace{Separators: []string{" "}}
	got := ns.Split("recall 3 123456")
	want := []string{"recall", "3", "123456"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSuperusers(t *testing.T) {
	t.Setenv("SUPERUSERS", "111, 222")
	su := LoadSuperusers()
	if !su.IsSuperuser(111) || !su.IsSuperuser(222) {
		t.Fatalf("expected both 111 and 222 to be superusers")
	}
	if su.IsSuperuser(333) {
		t.Fatalf("expected 333 to not be a superuser")
	}
}
