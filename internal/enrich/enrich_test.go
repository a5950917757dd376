package enrich

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ospreyintel/awardflow/internal/usaspending"
	"github.com/ospreyintel/awardflow/models"
)

type stubAPI struct {
	txResp *usaspending.SearchResponse
	txErr  error
	txReq  usaspending.TransactionRequest
}

func (s *stubAPI) SearchAwards(context.Context, usaspending.SearchRequest) (*usaspending.SearchResponse, error) {
	return &usaspending.SearchResponse{}, nil
}

func (s *stubAPI) GetAward(context.Context, string) (usaspending.RawAward, error) {
	return usaspending.RawAward{}, nil
}

func (s *stubAPI) SearchTransactions(_ context.Context, req usaspending.TransactionRequest) (*usaspending.SearchResponse, error) {
	s.txReq = req
	if s.txErr != nil {
		return nil, s.txErr
	}
	return s.txResp, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestFetchTransactionsDecodesHistory(t *testing.T) {
	api := &stubAPI{txResp: &usaspending.SearchResponse{
		Results: []json.RawMessage{
			json.RawMessage(`{"internal_id":"TX-1","Action Date":"2025-06-01","Transaction Amount":125000,"Mod":"P00003","Transaction Description":"option exercise"}`),
			json.RawMessage(`{"internal_id":"TX-2","Action Date":"2024-06-01","Transaction Amount":"98000.25"}`),
			json.RawMessage(`{"Action Date":"2024-01-01","Transaction Amount":1}`),
		},
	}}
	e := &Enricher{API: api, Logger: log.New(discardWriter{}, "", 0), now: time.Now}

	award := &models.Award{ExternalID: "CONT_AWD_1", AwardID: "FA8771-23-C-0009"}
	txs, err := e.fetchTransactions(context.Background(), award)
	require.NoError(t, err)
	require.Len(t, txs, 2, "rows without an identifier are dropped")

	assert.Equal(t, "TX-1", txs[0].ID)
	assert.Equal(t, "CONT_AWD_1", txs[0].AwardExternal)
	assert.Equal(t, 125000.0, txs[0].Amount)
	assert.Equal(t, "P00003", txs[0].ModNumber)
	require.NotNil(t, txs[0].ActionDate)
	assert.Equal(t, 2025, txs[0].ActionDate.Year())
	assert.Equal(t, 98000.25, txs[1].Amount, "string amounts are coerced")

	filters := api.txReq.Filters
	assert.Equal(t, []string{"FA8771-23-C-0009"}, filters["award_ids"], "explicit award id preferred for the transaction query")
}

func TestFetchTransactionsFallsBackToExternalID(t *testing.T) {
	api := &stubAPI{txResp: &usaspending.SearchResponse{}}
	e := &Enricher{API: api, Logger: log.New(discardWriter{}, "", 0), now: time.Now}

	_, err := e.fetchTransactions(context.Background(), &models.Award{ExternalID: "CONT_AWD_2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CONT_AWD_2"}, api.txReq.Filters["award_ids"])
}

func samEnvelope() string {
	return `{
		"entityData": [{
			"entityRegistration": {
				"ueiSAM": "UEIABC123",
				"legalBusinessName": "Bastion Cyber Group LLC",
				"registrationStatus": "Active"
			},
			"coreData": {
				"businessTypes": {
					"businessTypeList": [
						{"businessTypeDesc": "Small Business"},
						{"businessTypeDesc": "Service-Disabled Veteran-Owned"}
					]
				}
			}
		}]
	}`
}

func TestRegistryLookupParsesEntity(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "UEIABC123", r.URL.Query().Get("ueiSAM"))
		w.Write([]byte(samEnvelope()))
	}))
	defer ts.Close()

	c := &RegistryClient{BaseURL: ts.URL, HTTPClient: ts.Client()}
	rec, err := c.Lookup(context.Background(), "UEIABC123")
	require.NoError(t, err)
	assert.Equal(t, "Bastion Cyber Group LLC", rec.LegalName)
	assert.True(t, rec.Active)
	assert.Equal(t, []string{"Small Business", "Service-Disabled Veteran-Owned"}, rec.BusinessTypes)
}

func TestRegistryLookupRejectsEmptyVendor(t *testing.T) {
	c := &RegistryClient{BaseURL: "http://unused", HTTPClient: http.DefaultClient}
	_, err := c.Lookup(context.Background(), "")
	require.Error(t, err)
}

func TestLookupVendorMergesBusinessTypes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(samEnvelope()))
	}))
	defer ts.Close()

	e := &Enricher{
		Registry: &RegistryClient{BaseURL: ts.URL, HTTPClient: ts.Client()},
		Logger:   log.New(discardWriter{}, "", 0),
	}
	award := &models.Award{RecipientID: "UEIABC123", BusinessTypes: []string{"Small Business"}}
	e.lookupVendor(context.Background(), award)

	assert.Equal(t, []string{"Small Business", "Service-Disabled Veteran-Owned"}, award.BusinessTypes,
		"registry types merged without duplicates")
}

func TestLookupVendorFailureIsBestEffort(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	e := &Enricher{
		Registry: &RegistryClient{BaseURL: ts.URL, HTTPClient: ts.Client()},
		Logger:   log.New(discardWriter{}, "", 0),
	}
	award := &models.Award{RecipientID: "UEIABC123", BusinessTypes: []string{"Small Business"}}
	e.lookupVendor(context.Background(), award)

	assert.Equal(t, []string{"Small Business"}, award.BusinessTypes, "award untouched on registry failure")
}
