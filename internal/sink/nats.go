// SPDX-License-Identifier: GPL-3.0
// Copyright (C) 2026 nflogipac Contributors

package sink

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/nflogipac/internal/types"
)

type natsAccount struct {
	Prefix string `json:"prefix"`
	Bytes  uint64 `json:"bytes"`
}

type natsReport struct {
	Timestamp int64         `json:"timestamp"`
	Group     uint16        `json:"group"`
	Kind      string        `json:"kind"`
	Lost      uint16        `json:"lost,omitempty"`
	Accounts  []natsAccount `json:"accounts"`
}

func encodeReport(r types.Report) ([]byte, error) {
	msg := natsReport{
		Timestamp: r.Time.Unix(),
		Group:     r.Group,
		Kind:      r.Kind,
		Lost:      r.Lost,
		Accounts:  make([]natsAccount, len(r.Accounts)),
	}
	for i, a := range r.Accounts {
		msg.Accounts[i] = natsAccount{Prefix: a.Prefix.String(), Bytes: a.Bytes}
	}
	return json.Marshal(msg)
}

// NATS publishes each report as one JSON message.
type NATS struct {
	nc      *nats.Conn
	subject string
}

func OpenNATS(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url, nats.Name("nflogipac-collector"))
	if err != nil {
		return nil, err
	}
	slog.Info("connected to NATS", "url", url, "subject", subject)
	return &NATS{nc: nc, subject: subject}, nil
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Write(_ context.Context, r types.Report) error {
	data, err := encodeReport(r)
	if err != nil {
		return err
	}
	return n.nc.Publish(n.subject, data)
}

// Close drains pending messages before closing the connection.
func (n *NATS) Close() error {
	return n.nc.Drain()
}
