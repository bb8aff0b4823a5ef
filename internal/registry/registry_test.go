package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_LoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bayc.yaml", `
slug: bayc
contract: "0xBC4CA0EdA7647A8aB7C2061c2E118A18a936f13D"
name: Bored Ape Yacht Club
`)
	writeFile(t, dir, "punks.yml", `
contract: "0xb47e3cd837dDF8e4c57F05d70Ab865de6e193BBB"
name: CryptoPunks
`)
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "broken.yaml", "slug: [unterminated")

	r := New()
	if err := r.LoadFromDirectory(dir, nil); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	col, ok := r.BySlug("BAYC")
	if !ok {
		t.Fatal("bayc not found")
	}
	if col.ContractAddress != "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d" {
		t.Errorf("contract not normalized: %q", col.ContractAddress)
	}

	// Slug defaults to the file name when omitted.
	if _, ok := r.BySlug("punks"); !ok {
		t.Error("punks slug not derived from file name")
	}

	if len(r.All()) != 2 {
		t.Errorf("expected 2 collections, got %d", len(r.All()))
	}
}

func TestRegistry_LoadMissingDirectory(t *testing.T) {
	r := New()
	if err := r.LoadFromDirectory(filepath.Join(t.TempDir(), "absent"), nil); err != nil {
		t.Fatalf("missing directory must not be an error: %v", err)
	}
}

func TestRegistry_ResolveContract(t *testing.T) {
	r := New()
	r.Add(Collection{Slug: "bayc", ContractAddress: "0xBC4C"})

	if got, ok := r.ResolveContract("bayc"); !ok || got != "0xbc4c" {
		t.Errorf("slug resolution got %q, %v", got, ok)
	}
	if got, ok := r.ResolveContract("0xABCD"); !ok || got != "0xabcd" {
		t.Errorf("address passthrough got %q, %v", got, ok)
	}
	if _, ok := r.ResolveContract("unknown"); ok {
		t.Error("unknown slug must not resolve")
	}
}

func TestRegistry_ByContract(t *testing.T) {
	r := New()
	r.Add(Collection{Slug: "bayc", ContractAddress: "0xBC4C"})

	if _, ok := r.ByContract("0xbc4c"); !ok {
		t.Error("lookup by normalized contract failed")
	}
	if _, ok := r.ByContract("0xBC4C"); !ok {
		t.Error("lookup must normalize the query address")
	}
}
