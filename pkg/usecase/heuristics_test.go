package usecase

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/stationops/wrench/pkg/domain/model"
)

func TestLooksLikeTicketRequest(t *testing.T) {
	gt.Bool(t, looksLikeTicketRequest("Create a ticket for the coolant leak")).True()
	gt.Bool(t, looksLikeTicketRequest("REPAIR the loader, it broke down")).True()
	gt.Bool(t, looksLikeTicketRequest("what is the weather today")).False()
	gt.Bool(t, looksLikeTicketRequest("")).False()
}

func TestDeriveSpecialization(t *testing.T) {
	gt.Value(t, deriveSpecialization("the alternator is dead")).Equal("electrical")
	gt.Value(t, deriveSpecialization("Wiring smells burnt")).Equal("electrical")
	gt.Value(t, deriveSpecialization("injector misfire on unit 3")).Equal("engine")
}

func TestDerivePriority(t *testing.T) {
	gt.Number(t, derivePriority("URGENT: line is down")).Equal(4)
	gt.Number(t, derivePriority("high vibration on idle")).Equal(3)
	gt.Number(t, derivePriority("minor scratch on the panel")).Equal(1)
	gt.Number(t, derivePriority("please take a look sometime")).Equal(2)
}

func TestExtractPartName(t *testing.T) {
	gt.Value(t, extractPartName("replace the oil filter")).Equal("Oil Filter")
	gt.Value(t, extractPartName("injector and filter both bad")).Equal("Fuel Injector")
	gt.Value(t, extractPartName("something is rattling")).Equal(defaultPartName)
}

func TestPickConnector(t *testing.T) {
	connectors := []*model.Connector{
		{ID: "a", Name: "Acme Parts Supply", BaseURL: "https://supply.example.com/rpc"},
		{ID: "b", Name: "Workforce Hub", BaseURL: "https://hub.example.com/rpc"},
	}

	gt.Value(t, pickConnector(connectors, supplyKeywords).ID).Equal(connectors[0].ID)
	gt.Value(t, pickConnector(connectors, workforceKeywords).ID).Equal(connectors[1].ID)
	gt.Value(t, pickConnector(connectors, ticketingKeywords)).Nil()
	gt.Value(t, pickConnector(nil, supplyKeywords)).Nil()
}

func TestTruncate(t *testing.T) {
	gt.Value(t, truncate("short", 10)).Equal("short")
	gt.Value(t, truncate("0123456789", 4)).Equal("0123")
}
