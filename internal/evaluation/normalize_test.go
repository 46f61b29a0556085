package evaluation

import (
	"strings"
	"testing"
)

func TestNormalizeIdentifier(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.com/Path/", "example.com/path"},
		{"example.com/path", "example.com/path"},
		{"http://www.shl.com/solutions/products/product-catalog/view/java-8-new/", "www.shl.com/solutions/products/product-catalog/view/java-8-new"},
		{"https://shl.com/view/python?utm=1#top", "shl.com/view/python"},
		{"https://user:pw@shl.com/view/", "shl.com/view"},
		{"//cdn.example.com/a", "cdn.example.com/a"},
		{"/products/view/x/", "/products/view/x"},
		{"https://example.com", "example.com"},
		{"   ", ""},
		{"", ""},
		{"https://", ""},
		{"example.com/a" + strings.Repeat("/ ", 10) + "/", "example.com/a"},
		{"https://shl.com/view/ / /\t", "shl.com/view"},
	}

	for _, tc := range cases {
		if got := NormalizeIdentifier(tc.in); got != tc.want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeIdentifierIsIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.com/Path/",
		"https://https://example.com//a//",
		"https://u@//x/y",
		"ftp://Files.Example.com/dir/?q",
		"/relative/path/",
		"plain-slug",
		"https://example.com/a#b?c",
		"  Mixed CASE/Path  ",
		"example.com/a" + strings.Repeat("/ ", 10) + "/",
		"example.com/a" + strings.Repeat("/\n", 40),
		"// http://x.com/y",
		"a@ https://x.com/y",
		"/ /b/",
	}

	for _, in := range inputs {
		once := NormalizeIdentifier(in)
		if twice := NormalizeIdentifier(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestExtractSlug(t *testing.T) {
	cases := map[string]string{
		"https://www.shl.com/products/view/java-8-new/": "java-8-new",
		"shl.com/view/python?x=1":                       "python",
		"https://example.com":                           "",
		"":                                              "",
		"/a/b/":                                         "b",
	}

	for in, want := range cases {
		if got := ExtractSlug(in); got != want {
			t.Errorf("ExtractSlug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeAllDropsEmpty(t *testing.T) {
	got := NormalizeAll([]string{"https://a.com/x/", "  ", "B.com"})
	if len(got) != 2 || got[0] != "a.com/x" || got[1] != "b.com" {
		t.Fatalf("unexpected result: %v", got)
	}
}
