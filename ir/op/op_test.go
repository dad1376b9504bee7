// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package op

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	info, err := Lookup(Add)
	require.NoError(t, err)
	assert.Equal(t, "add", info.Name)
	assert.Equal(t, "add", Add.String())

	back, ok := ByName("add")
	require.True(t, ok)
	assert.Equal(t, Add, back)

	_, err = Lookup(Op(0xff))
	require.Error(t, err)
	assert.Equal(t, InvalidOpcodeError(0xff), err)
}

func TestDuplicateRegistration(t *testing.T) {
	assert.Panics(t, func() { New(byte(Add), "add2", 0) })
}

func TestFlags(t *testing.T) {
	for _, tc := range []struct {
		op         Op
		effects    bool
		terminator bool
		call       bool
	}{
		{Add, false, false, false},
		{StoreContext, true, false, false},
		{LoadSlow, true, false, true},
		{Branch, true, true, false},
		{CallNoret, true, true, true},
		{DebugBreak, true, false, false},
	} {
		assert.Equal(t, tc.effects, tc.op.HasSideEffects(), "%s side effects", tc.op)
		assert.Equal(t, tc.terminator, tc.op.IsTerminator(), "%s terminator", tc.op)
		assert.Equal(t, tc.call, tc.op.IsCall(), "%s call", tc.op)
	}
}
