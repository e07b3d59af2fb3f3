package minify

import (
	"errors"
	"strings"
	"testing"
)

func TestLua_StripsCommentsAndWhitespace(t *testing.T) {
	src := `-- header comment
local x = 1 -- one
local s = "a -- not comment"
--[[ block
comment ]]
local t = { [ [[k]] ] = x - -1 }
return x .. s
`
	want := `local x=1 local s="a -- not comment"local t={[ [[k]]]=x- -1}return x ..s`

	got, err := Lua.Minify("proj/a.lua", src)
	if err != nil {
		t.Fatalf("Lua.Minify: %v", err)
	}
	if got != want {
		t.Errorf("Lua.Minify =\n%s\nwant\n%s", got, want)
	}
}

func TestLua_PreservesLongStrings(t *testing.T) {
	src := "local s = [==[\n  keep   this -- too\n]==]\nreturn s\n"

	got, err := Lua.Minify("a.lua", src)
	if err != nil {
		t.Fatalf("Lua.Minify: %v", err)
	}
	if !strings.Contains(got, "[==[\n  keep   this -- too\n]==]") {
		t.Errorf("long string was altered: %q", got)
	}
}

func TestLua_SyntaxError(t *testing.T) {
	if _, err := Lua.Minify("bad.lua", "local = = 1"); err == nil {
		t.Fatal("Lua.Minify: expected syntax error, got nil")
	}
}

func TestByExtension_WrapsErrors(t *testing.T) {
	_, err := Default().Minify("proj/bad.lua", "function (")

	var me *Error
	if !errors.As(err, &me) {
		t.Fatalf("Minify: got %v, want *Error", err)
	}
	if me.Name != "proj/bad.lua" {
		t.Errorf("Name = %q, want %q", me.Name, "proj/bad.lua")
	}
}

func TestByExtension_Dispatch(t *testing.T) {
	d := NewByExtension(Identity)
	d.Register(".up", Func(func(_, src string) (string, error) {
		return strings.ToUpper(src), nil
	}))

	got, err := d.Minify("x/file.UP", "abc")
	if err != nil || got != "ABC" {
		t.Errorf("Minify(.UP) = (%q, %v), want (%q, nil)", got, err, "ABC")
	}

	got, err = d.Minify("x/file.txt", "abc")
	if err != nil || got != "abc" {
		t.Errorf("Minify(.txt) = (%q, %v), want fallback identity", got, err)
	}
}

func TestDefault_JSON(t *testing.T) {
	got, err := Default().Minify("proj/data.json", "{ \"a\" : 1 }\n")
	if err != nil {
		t.Fatalf("Minify: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("Minify(json) = %q, want %q", got, `{"a":1}`)
	}
}
