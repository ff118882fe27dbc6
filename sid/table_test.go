/* mvdctl - VelocityDRIVE-SP control stack
 *
 * Copyright (C) 2025-2026 the mvdctl authors.
 *
 * This file is licensed under the terms of the MIT License, as found in LICENSE.md.
 */

package sid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velocity-sp/mvdctl/sid"
)

func TestDefaultTableLoads(t *testing.T) {
	table := sid.DefaultTable()
	require.NotNil(t, table)
	assert.NotEmpty(t, table.Entries())
}

func TestSidForPath(t *testing.T) {
	table := sid.DefaultTable()

	s, ok := table.SidForPath("/ietf-interfaces:interfaces")
	require.True(t, ok)
	assert.Equal(t, uint32(1000), s)

	// Leading slash is optional.
	s, ok = table.SidForPath("ietf-interfaces:interfaces")
	require.True(t, ok)
	assert.Equal(t, uint32(1000), s)

	s, ok = table.SidForPath("/ietf-constrained-yang-library:yang-library/checksum")
	require.True(t, ok)
	assert.Equal(t, uint32(29304), s)

	_, ok = table.SidForPath("/no-such-module:nothing")
	assert.False(t, ok)
}

func TestRoundTripAllSids(t *testing.T) {
	table := sid.DefaultTable()
	for _, entry := range table.Entries() {
		path, ok := table.PathForSid(entry.Sid)
		require.True(t, ok)
		s, ok := table.SidForPath(path)
		require.True(t, ok)
		assert.Equal(t, entry.Sid, s)
	}
}

func TestSearch(t *testing.T) {
	table := sid.DefaultTable()

	entries, err := table.Search(`gate-parameter-table`)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
	for _, entry := range entries {
		assert.Contains(t, entry.Path, "gate-parameter-table")
	}

	_, err = table.Search(`([`)
	assert.Error(t, err)
}

func TestModuleForSid(t *testing.T) {
	table := sid.DefaultTable()

	name, ok := table.ModuleForSid(1005)
	require.True(t, ok)
	assert.Equal(t, "ietf-interfaces", name)

	name, ok = table.ModuleForSid(29304)
	require.True(t, ok)
	assert.Equal(t, "ietf-constrained-yang-library", name)

	_, ok = table.ModuleForSid(99999)
	assert.False(t, ok)
}

func TestListKeyMetadata(t *testing.T) {
	table := sid.DefaultTable()
	entry, ok := table.Lookup("/ietf-interfaces:interfaces/interface")
	require.True(t, ok)
	assert.Equal(t, sid.KindList, entry.Kind)
	assert.Equal(t, "name", entry.Key)
}

func TestValidate(t *testing.T) {
	table := sid.DefaultTable()

	assert.NoError(t, table.Validate("/ietf-interfaces:interfaces/interface/enabled", true))
	assert.ErrorIs(t, table.Validate("/ietf-interfaces:interfaces/interface/enabled", "yes"), sid.ErrValueType)

	assert.NoError(t, table.Validate("/ieee1588-ptp:ptp/instances/instance/default-ds/priority1", uint64(128)))
	assert.ErrorIs(t, table.Validate("/ieee1588-ptp:ptp/instances/instance/default-ds/priority1", uint64(300)), sid.ErrValueRange)
	assert.ErrorIs(t, table.Validate("/ieee1588-ptp:ptp/instances/instance/default-ds/priority1", int64(-1)), sid.ErrValueType)

	assert.NoError(t, table.Validate("/ieee1588-ptp:ptp/instances/instance/ports/port/port-ds/log-sync-interval", int64(-3)))
	assert.ErrorIs(t, table.Validate("/ieee1588-ptp:ptp/instances/instance/ports/port/port-ds/log-sync-interval", int64(400)), sid.ErrValueRange)

	assert.ErrorIs(t, table.Validate("/ietf-interfaces:interfaces", uint64(1)), sid.ErrNotLeaf)
	assert.ErrorIs(t, table.Validate("/nope", uint64(1)), sid.ErrUnknownPath)
}

func TestLoadTableRejectsDuplicates(t *testing.T) {
	_, err := sid.LoadTable([]byte(`
[[entry]]
sid = 10
path = "/a:b"
kind = "leaf"

[[entry]]
sid = 10
path = "/a:c"
kind = "leaf"
`))
	assert.Error(t, err)

	_, err = sid.LoadTable([]byte(`
[[entry]]
sid = 10
path = "/a:b"
kind = "leaf"

[[entry]]
sid = 11
path = "/a:b"
kind = "leaf"
`))
	assert.Error(t, err)
}
