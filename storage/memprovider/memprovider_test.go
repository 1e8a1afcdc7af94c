package memprovider

import (
	"testing"

	"github.com/liliang-cn/knowmem/pkg/embedcache"
	"github.com/liliang-cn/knowmem/pkg/testembed"
	"github.com/liliang-cn/knowmem/storage"
	"github.com/liliang-cn/knowmem/storage/storagetest"
)

func newProvider() storage.Provider {
	cache := embedcache.New(testembed.New(8), embedcache.DefaultConfig())
	return New(cache)
}

func TestProviderSuite(t *testing.T) {
	storagetest.RunProviderSuite(t, newProvider)
}

func TestCloseIsNoop(t *testing.T) {
	p := newProvider()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
