package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avbridge/avdecc-go/pkg/endstation"
	"github.com/avbridge/avdecc-go/pkg/entity"
	"github.com/avbridge/avdecc-go/pkg/protocol"
	"github.com/avbridge/avdecc-go/pkg/transport"
)

const (
	peerEntityIDBase protocol.UniqueIdentifier = 0x001B92FFFE5E0000
	peerModelID      protocol.UniqueIdentifier = 0x001B920000005E01
	peerValidTime    uint8                     = 5
)

// startPeers attaches n simulated end stations to the bus. Each hosts a
// single advertised talker/listener entity and answers commands with the
// built-in responder. Peers started before a failure are returned.
func startPeers(ctx context.Context, bus *transport.Bus, n int, logger *slog.Logger) ([]*endstation.EndStation, error) {
	var peers []*endstation.EndStation
	for i := 1; i <= n; i++ {
		p, err := startPeer(ctx, bus, i, logger.With("peer", i))
		if err != nil {
			return peers, err
		}
		peers = append(peers, p)
	}
	return peers, nil
}

func startPeer(ctx context.Context, bus *transport.Bus, n int, logger *slog.Logger) (*endstation.EndStation, error) {
	iface, err := bus.NewInterface(virtualMac(n))
	if err != nil {
		return nil, err
	}

	cfg := endstation.DefaultConfig()
	cfg.Interface = iface
	cfg.Logger = logger
	es, err := endstation.New(cfg)
	if err != nil {
		iface.Close()
		return nil, err
	}
	if err := es.Start(ctx); err != nil {
		iface.Close()
		return nil, err
	}

	local, err := entity.NewLocal(entity.CommonInformation{
		EntityID:             peerEntityIDBase + protocol.UniqueIdentifier(n),
		EntityModelID:        peerModelID,
		EntityCapabilities:   protocol.EntityCapAemSupported,
		TalkerStreamSources:  1,
		TalkerCapabilities:   protocol.TalkerCapImplemented,
		ListenerStreamSinks:  1,
		ListenerCapabilities: protocol.ListenerCapImplemented,
	}, map[protocol.AvbInterfaceIndex]entity.InterfaceInformation{
		0: {MacAddress: iface.MacAddress(), ValidTime: peerValidTime},
	})
	if err == nil {
		err = es.AddEntity(local, true)
	}
	if err != nil {
		return nil, errors.Join(err, es.Stop())
	}
	logger.Debug("peer started", "entity_id", local.EntityID(), "mac", iface.MacAddress())
	return es, nil
}
