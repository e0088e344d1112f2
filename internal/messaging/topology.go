package messaging

import "credential-lifecycle/backend/internal/contracts"

// AuthServiceTopology is declared by the auth service: it consumes creation completions and
// parks abandoned registrations and completions that kept failing.
var AuthServiceTopology = Topology{
	Exchanges: []string{contracts.ExchangeUserEvents, contracts.ExchangeAuthEvents},
	Bindings: []Binding{
		{
			Queue: contracts.QueueAuthUserCreation, Exchange: contracts.ExchangeAuthEvents,
			RoutingKey: contracts.RoutingUserCreated, DeadLetterKey: contracts.RoutingUserCreatedFailed,
		},
		{Queue: contracts.QueueAuthUserCreationDead, Exchange: contracts.ExchangeAuthEvents, RoutingKey: contracts.RoutingUserCreatedFailed},
		{Queue: contracts.QueueCreationAbandoned, Exchange: contracts.ExchangeAuthEvents, RoutingKey: contracts.RoutingCreationAbandoned},
	},
}

// AccountServiceTopology is declared by the account service: it consumes creation requests.
var AccountServiceTopology = Topology{
	Exchanges: []string{contracts.ExchangeUserEvents, contracts.ExchangeAuthEvents},
	Bindings: []Binding{
		{
			Queue: contracts.QueueUserCreation, Exchange: contracts.ExchangeUserEvents,
			RoutingKey: contracts.RoutingUserSync, DeadLetterKey: contracts.RoutingUserSyncFailed,
		},
		{Queue: contracts.QueueUserCreationDead, Exchange: contracts.ExchangeUserEvents, RoutingKey: contracts.RoutingUserSyncFailed},
	},
}
