package storage

import "testing"

func TestObjectKey(t *testing.T) {
	got := ObjectKey("usr_1", "doc_2", "bukti.pdf")
	want := "documents/usr_1/doc_2_bukti.pdf"
	if got != want {
		t.Fatalf("ObjectKey() = %q, want %q", got, want)
	}
}
