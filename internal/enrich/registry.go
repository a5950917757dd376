package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ospreyintel/awardflow/config"
)

// VendorRecord is the slice of a vendor-registry entity this system cares
// about: the registered business classifications behind set-aside reality
// checks.
type VendorRecord struct {
	UEI           string   `json:"uei"`
	LegalName     string   `json:"legal_name"`
	BusinessTypes []string `json:"business_types"`
	Active        bool     `json:"active"`
}

// RegistryClient performs the best-effort secondary vendor-registry lookup,
// with a redis cache in front so repeat vendors cost one upstream call.
type RegistryClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Redis      *redis.Client
	CacheTTL   time.Duration
}

// NewRegistryClient builds a registry client; rdb may be nil to disable
// caching.
func NewRegistryClient(cfg config.SAMConfig, rdb *redis.Client) *RegistryClient {
	return &RegistryClient{
		BaseURL:    cfg.BaseURL,
		APIKey:     cfg.APIKey,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		Redis:      rdb,
		CacheTTL:   cfg.CacheTTL,
	}
}

const vendorKeyPrefix = "vendor:"

// Lookup fetches the registry record for a vendor identifier. Callers treat
// every error here as best-effort: enrichment proceeds without the record.
func (c *RegistryClient) Lookup(ctx context.Context, uei string) (*VendorRecord, error) {
	if uei == "" {
		return nil, fmt.Errorf("empty vendor id")
	}
	if c.Redis != nil {
		if data, err := c.Redis.Get(ctx, vendorKeyPrefix+uei).Result(); err == nil {
			var rec VendorRecord
			if err := json.Unmarshal([]byte(data), &rec); err == nil {
				return &rec, nil
			}
		}
	}

	rec, err := c.fetch(ctx, uei)
	if err != nil {
		return nil, err
	}
	if c.Redis != nil {
		if data, err := json.Marshal(rec); err == nil {
			c.Redis.Set(ctx, vendorKeyPrefix+uei, data, c.CacheTTL)
		}
	}
	return rec, nil
}

func (c *RegistryClient) fetch(ctx context.Context, uei string) (*VendorRecord, error) {
	q := url.Values{}
	q.Set("ueiSAM", uei)
	if c.APIKey != "" {
		q.Set("api_key", c.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/entities?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry lookup %s: %w", uei, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry lookup %s: status %d", uei, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		EntityData []struct {
			EntityRegistration struct {
				UEI           string `json:"ueiSAM"`
				LegalName     string `json:"legalBusinessName"`
				Status        string `json:"registrationStatus"`
			} `json:"entityRegistration"`
			CoreData struct {
				BusinessTypes struct {
					List []struct {
						Description string `json:"businessTypeDesc"`
					} `json:"businessTypeList"`
				} `json:"businessTypes"`
			} `json:"coreData"`
		} `json:"entityData"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding registry response: %w", err)
	}
	if len(envelope.EntityData) == 0 {
		return nil, fmt.Errorf("registry lookup %s: no entity", uei)
	}
	e := envelope.EntityData[0]
	rec := &VendorRecord{
		UEI:       e.EntityRegistration.UEI,
		LegalName: e.EntityRegistration.LegalName,
		Active:    e.EntityRegistration.Status == "Active",
	}
	for _, bt := range e.CoreData.BusinessTypes.List {
		if bt.Description != "" {
			rec.BusinessTypes = append(rec.BusinessTypes, bt.Description)
		}
	}
	return rec, nil
}
