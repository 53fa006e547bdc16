// Package models contains the GORM persistence models of the stock ledger.
// Domain entities carry no GORM tags; each model converts to and from its
// entity with ToDomain and FromDomain, and repositories only touch models.
package models
