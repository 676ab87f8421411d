// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NimbusMQ Contributors

// Package authz is the surface the broker's hook dispatcher calls on
// connect, publish, and subscribe. It builds access requests from
// session context and consults the live ACL rule-set snapshot.
package authz

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/nimbusmq/nimbus/internal/authz/acl"
	"github.com/nimbusmq/nimbus/internal/authz/acl/types"
)

// Authorizer answers per-event authorization queries against the
// current rule-set snapshot. It is safe for unbounded concurrent use;
// evaluation never blocks on I/O.
type Authorizer struct {
	cache    *acl.Cache
	fallback types.Permission
}

// New creates an Authorizer over the given cache. fallback is the
// decision when no rule matches, conventionally deny.
func New(cache *acl.Cache, fallback types.Permission) *Authorizer {
	return &Authorizer{cache: cache, fallback: fallback}
}

// Authorize evaluates one request against the live snapshot and
// returns the decision. The snapshot is immutable, so concurrent
// reloads never affect an evaluation in progress.
func (a *Authorizer) Authorize(ctx context.Context, req types.AccessRequest) types.Decision {
	start := time.Now()
	snap := a.cache.Snapshot()
	decision := snap.Rules.Evaluate(req, a.fallback)
	recordDecision(req.Action, decision, time.Since(start))

	slog.DebugContext(ctx, "acl decision",
		"client_id", req.ClientID,
		"action", req.Action.String(),
		"topic", req.Topic,
		"decision", decision.String(),
		"revision", snap.Revision.String())
	return decision
}

// PublishRequest builds the access request for a publish event.
func PublishRequest(clientID, username string, peer netip.Addr, topic string, qos byte, retain bool) types.AccessRequest {
	return types.AccessRequest{
		ClientID:    clientID,
		Username:    username,
		PeerAddress: peer,
		Action:      types.ActionPublish,
		Topic:       topic,
		Qos:         qos,
		Retain:      retain,
	}
}

// SubscribeRequest builds the access request for a subscribe event.
// The topic carries the requested filter verbatim.
func SubscribeRequest(clientID, username string, peer netip.Addr, filter string, qos byte) types.AccessRequest {
	return types.AccessRequest{
		ClientID:    clientID,
		Username:    username,
		PeerAddress: peer,
		Action:      types.ActionSubscribe,
		Topic:       filter,
		Qos:         qos,
	}
}
