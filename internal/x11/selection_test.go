package x11

import (
	"bytes"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestClipboardOffers(t *testing.T) {
	text := []byte("caption")
	png := []byte{0x89, 'P', 'N', 'G'}

	offers := clipboardOffers(text, png)
	if len(offers) != len(TextTargets)+1 {
		t.Fatalf("got %d offers, want %d", len(offers), len(TextTargets)+1)
	}
	byTarget := map[string]selectionOffer{}
	for _, o := range offers {
		byTarget[o.target] = o
	}
	if o := byTarget["UTF8_STRING"]; o.typ != "UTF8_STRING" || !bytes.Equal(o.data, text) {
		t.Fatalf("UTF8_STRING offer = %+v", o)
	}
	if o := byTarget["STRING"]; o.typ != "STRING" {
		t.Fatalf("STRING offer type = %q", o.typ)
	}
	if o := byTarget[ImageTarget]; o.typ != ImageTarget || !bytes.Equal(o.data, png) {
		t.Fatalf("image offer = %+v", o)
	}

	if got := clipboardOffers(nil, png); len(got) != 1 || got[0].target != ImageTarget {
		t.Fatalf("image only offers = %+v", got)
	}
	if got := clipboardOffers([]byte{}, nil); len(got) != len(TextTargets) {
		t.Fatalf("empty text should still be offered, got %+v", got)
	}
	if got := clipboardOffers(nil, nil); len(got) != 0 {
		t.Fatalf("nothing saved should offer nothing, got %+v", got)
	}
}

func TestChunks(t *testing.T) {
	data := []byte("abcdefghij")
	got := chunks(data, 4)
	want := [][]byte{[]byte("abcd"), []byte("efgh"), []byte("ij"), {}}
	if len(got) != len(want) {
		t.Fatalf("chunks = %q, want %q", got, want)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Fatalf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}

	exact := chunks([]byte("abcd"), 4)
	if len(exact) != 2 || len(exact[1]) != 0 {
		t.Fatalf("exact multiple should end with one empty piece, got %q", exact)
	}
}

func TestEncodeAtoms(t *testing.T) {
	got := encodeAtoms([]xproto.Atom{1, 0x01020304})
	want := []byte{1, 0, 0, 0, 4, 3, 2, 1}
	if !bytes.Equal(got, want) {
		t.Fatalf("encodeAtoms = %v, want %v", got, want)
	}
}
