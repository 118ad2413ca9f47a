// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package flashalgo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/targetgen/internal/testutil"
)

func TestCacheLoadsOnce(t *testing.T) {
	c := NewCache()
	data := testutil.NewFLM().Bytes()
	key := Key{Archive: "0123456789abcdef", Path: "Flash/ACME_64.FLM"}
	var loads atomic.Int32
	load := func() (*Image, error) {
		loads.Add(1)
		return Parse(data, Options{})
	}

	const n = 16
	ims := make([]*Image, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			im, err := c.Image(key, load)
			assert.NoError(t, err)
			ims[i] = im
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, loads.Load())
	require.NotNil(t, ims[0])
	for _, im := range ims[1:] {
		assert.Same(t, ims[0], im)
	}
	assert.Equal(t, 1, c.Len())

	other := Key{Archive: key.Archive, Path: "Flash/OTHER.FLM"}
	_, err := c.Image(other, load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, loads.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCacheMemoizesErrors(t *testing.T) {
	c := NewCache()
	key := Key{Archive: "a", Path: "broken.FLM"}
	loads := 0
	load := func() (*Image, error) {
		loads++
		return nil, &MissingSymbolError{"ProgramPage"}
	}
	for range 3 {
		_, err := c.Image(key, load)
		var ms *MissingSymbolError
		require.True(t, errors.As(err, &ms))
	}
	assert.Equal(t, 1, loads)
	assert.Equal(t, "a:broken.FLM", key.String())
}
