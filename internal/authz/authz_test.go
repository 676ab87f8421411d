// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

package authz

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusmq/nimbus/internal/authz/acl"
	"github.com/nimbusmq/nimbus/internal/authz/acl/source"
	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

func newAuthorizer(t *testing.T, fallback types.Permission, rules ...types.RawRule) *Authorizer {
	t.Helper()
	cache := acl.NewCache(source.Static(rules), true)
	require.NoError(t, cache.Reload(context.Background()))
	return New(cache, fallback)
}

func TestAuthorize(t *testing.T) {
	auth := newAuthorizer(t, types.PermissionDeny,
		types.RawRule{
			"permission":  "allow",
			"action":      "pub",
			"topic":       "telemetry/#",
			"username_re": "device-.*",
		},
		types.RawRule{"permission": "allow", "action": "sub", "topic": "broadcast/+"},
	)

	peer := netip.MustParseAddr("10.0.0.5")
	ctx := context.Background()

	pub := auth.Authorize(ctx, PublishRequest("d1", "device-7", peer, "telemetry/cpu", 1, false))
	assert.Equal(t, types.PermissionAllow, pub.Permission)
	assert.Equal(t, 0, pub.RuleIndex)

	wrongUser := auth.Authorize(ctx, PublishRequest("c2", "operator", peer, "telemetry/cpu", 1, false))
	assert.Equal(t, types.PermissionDeny, wrongUser.Permission)
	assert.False(t, wrongUser.Matched())

	sub := auth.Authorize(ctx, SubscribeRequest("c2", "operator", peer, "broadcast/news", 0))
	assert.Equal(t, types.PermissionAllow, sub.Permission)
	assert.Equal(t, 1, sub.RuleIndex)
}

func TestAuthorize_FallbackPermission(t *testing.T) {
	peer := netip.MustParseAddr("10.0.0.5")

	deny := newAuthorizer(t, types.PermissionDeny)
	decision := deny.Authorize(context.Background(),
		PublishRequest("c", "u", peer, "any", 0, false))
	assert.Equal(t, types.PermissionDeny, decision.Permission)

	allow := newAuthorizer(t, types.PermissionAllow)
	decision = allow.Authorize(context.Background(),
		PublishRequest("c", "u", peer, "any", 0, false))
	assert.Equal(t, types.PermissionAllow, decision.Permission)
}

func TestAuthorize_EmptySnapshotBeforeReload(t *testing.T) {
	cache := acl.NewCache(source.Static(nil), true)
	auth := New(cache, types.PermissionDeny)

	// Nothing loaded yet: every request falls back.
	decision := auth.Authorize(context.Background(),
		PublishRequest("c", "u", netip.Addr{}, "t", 0, false))
	assert.Equal(t, types.PermissionDeny, decision.Permission)
	assert.False(t, decision.Matched())
}

func TestPublishRequest(t *testing.T) {
	peer := netip.MustParseAddr("192.0.2.1")
	req := PublishRequest("client", "user", peer, "a/b", 2, true)

	assert.Equal(t, types.AccessRequest{
		ClientID:    "client",
		Username:    "user",
		PeerAddress: peer,
		Action:      types.ActionPublish,
		Topic:       "a/b",
		Qos:         2,
		Retain:      true,
	}, req)
}

func TestSubscribeRequest(t *testing.T) {
	peer := netip.MustParseAddr("192.0.2.1")
	req := SubscribeRequest("client", "user", peer, "a/#", 1)

	assert.Equal(t, types.AccessRequest{
		ClientID:    "client",
		Username:    "user",
		PeerAddress: peer,
		Action:      types.ActionSubscribe,
		Topic:       "a/#",
		Qos:         1,
	}, req)
}
