package api

import (
	"regwatch/app/catalog"
	"regwatch/app/database"
	"regwatch/app/pipeline"
)

type StageReporter interface {
	Stage() pipeline.Stage
}

var _ StageReporter = (*pipeline.Runner)(nil)

type Handler struct {
	catalog       *catalog.Cache
	seenRepo      database.SeenRepository
	recipientRepo database.RecipientRepository
	cycleRepo     database.CycleRepository
	runner        StageReporter
	version       string
}
