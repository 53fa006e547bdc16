package models

// All returns every model, in dependency order, for GORM auto-migration
func All() []any {
	return []any{
		&ItemModel{},
		&ItemChannelModel{},
		&WorkflowSessionModel{},
		&LeaderboardEntryModel{},
		&WebhookConfigModel{},
		&ProcessedKeyModel{},
		&ImportHistoryModel{},
	}
}
