package model

import (
	"github.com/smartfarm-iot/telemetry-node/internal/model/messages"
)

// Aliases so consumers can reach the wire records through one import.

type (
	FieldStats = messages.FieldStats
	WaterLevel = messages.WaterLevel
	Command    = messages.Command
)

const ActionSample = messages.ActionSample
