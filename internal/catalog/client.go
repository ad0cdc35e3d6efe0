package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// tokenExpiredSentinel is the string the catalog service embeds in an
// otherwise well-formed response body when the session token has
// expired.
const tokenExpiredSentinel = "TOKEN Expired"

const (
	soapActionAuth  = "http://microsoft.com/webservices/AuthenticateUser"
	soapActionItems = "http://microsoft.com/webservices/Item_funGetXMLData"
)

// credentials is the persisted catalog credential record, including
// the last session token.
type credentials struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	CompanyID    string `json:"company_id"`
	WebserviceID string `json:"webservice_id"`
	Token        string `json:"token,omitempty"`
}

// Config holds the catalog service connection settings.
type Config struct {
	URL          string
	Username     string
	Password     string
	CompanyID    string
	WebserviceID string
	AuthPath     string
}

// Client talks to the external vendor catalog over its SOAP endpoint.
// One FetchAllItems call returns the full catalog; the session token
// renews transparently once when the expiry sentinel appears, then
// the fetch is retried once.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.Mutex
	token string
}

// NewClient creates a catalog client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     util.GetLogger(),
	}
}

// FetchAllItems retrieves the full vendor catalog as
// (item_id, item_code, vendor_code) triples.
func (c *Client) FetchAllItems(ctx context.Context) ([]models.VendorCatalogEntry, error) {
	token, err := c.sessionToken(ctx, false)
	if err != nil {
		return nil, err
	}

	payload, err := c.fetchItemsXML(ctx, token)
	if err != nil {
		return nil, err
	}

	if strings.Contains(payload, tokenExpiredSentinel) {
		c.logger.Info("Catalog session token expired, re-authenticating")
		token, err = c.sessionToken(ctx, true)
		if err != nil {
			return nil, err
		}
		payload, err = c.fetchItemsXML(ctx, token)
		if err != nil {
			return nil, err
		}
		if strings.Contains(payload, tokenExpiredSentinel) {
			return nil, &models.AuthError{Reason: "catalog token rejected after re-auth"}
		}
	}

	entries, err := parseItems(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog payload: %w", err)
	}
	return entries, nil
}

// sessionToken returns the current session token, authenticating when
// none is stored or when force is set.
func (c *Client) sessionToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	creds, err := c.loadCredentials()
	if err != nil {
		return "", err
	}
	if c.token == "" {
		c.token = creds.Token
	}
	if c.token != "" && !force {
		return c.token, nil
	}

	token, err := c.authenticate(ctx, creds)
	if err != nil {
		return "", err
	}

	c.token = token
	creds.Token = token
	if err := c.saveCredentials(creds); err != nil {
		c.logger.Warn("Failed to persist catalog session token", zap.Error(err))
	}
	return token, nil
}

func (c *Client) loadCredentials() (*credentials, error) {
	raw, err := os.ReadFile(c.cfg.AuthPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No credential file: fall back to configured values.
			return &credentials{
				Username:     c.cfg.Username,
				Password:     c.cfg.Password,
				CompanyID:    c.cfg.CompanyID,
				WebserviceID: c.cfg.WebserviceID,
			}, nil
		}
		return nil, &models.AuthError{Reason: "catalog credential store unreadable", Err: err}
	}
	var creds credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, &models.AuthError{Reason: "catalog credential store corrupt", Err: err}
	}
	return &creds, nil
}

func (c *Client) saveCredentials(creds *credentials) error {
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.cfg.AuthPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.cfg.AuthPath)
}

// soapEnvelope is the shared request envelope for both operations.
const soapEnvelope = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
               xmlns:xsd="http://www.w3.org/2001/XMLSchema"
               xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Header>
    <wsBasicQueryHeader xmlns="http://microsoft.com/webservices/">
      <pUsername>%s</pUsername>
      <pPassword>%s</pPassword>
      <pCompany>%s</pCompany>
      <pWebWervice>%s</pWebWervice>
      <pAuthenticatedToken>%s</pAuthenticatedToken>
    </wsBasicQueryHeader>
  </soap:Header>
  <soap:Body>
    <%s xmlns="http://microsoft.com/webservices/" />
  </soap:Body>
</soap:Envelope>`

func (c *Client) call(ctx context.Context, action, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamError{
			Endpoint:   c.cfg.URL,
			StatusCode: resp.StatusCode,
			Body:       string(raw[:min(len(raw), 512)]),
		}
	}
	return raw, nil
}

type authResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result string `xml:"AuthenticateUserResult"`
		} `xml:"AuthenticateUserResponse"`
	} `xml:"Body"`
}

func (c *Client) authenticate(ctx context.Context, creds *credentials) (string, error) {
	body := fmt.Sprintf(soapEnvelope,
		creds.Username, creds.Password, creds.CompanyID, creds.WebserviceID, "",
		"AuthenticateUser")

	raw, err := c.call(ctx, soapActionAuth, body)
	if err != nil {
		return "", &models.AuthError{Reason: "catalog authentication failed", Err: err}
	}

	var envelope authResponseEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return "", &models.AuthError{Reason: "catalog auth response malformed", Err: err}
	}
	token := envelope.Body.Response.Result
	if token == "" {
		return "", &models.AuthError{Reason: "catalog auth response missing token"}
	}

	c.logger.Info("Catalog session authenticated")
	return token, nil
}

type itemsResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response struct {
			Result string `xml:"Item_funGetXMLDataResult"`
		} `xml:"Item_funGetXMLDataResponse"`
	} `xml:"Body"`
}

// fetchItemsXML performs the full-catalog call and returns the inner
// XML document (or the expiry sentinel) as text.
func (c *Client) fetchItemsXML(ctx context.Context, token string) (string, error) {
	creds, err := c.loadCredentials()
	if err != nil {
		return "", err
	}
	body := fmt.Sprintf(soapEnvelope,
		creds.Username, creds.Password, creds.CompanyID, creds.WebserviceID, token,
		"Item_funGetXMLData")

	raw, err := c.call(ctx, soapActionItems, body)
	if err != nil {
		return "", err
	}

	var envelope itemsResponseEnvelope
	if err := xml.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("catalog items response malformed: %w", err)
	}
	return envelope.Body.Response.Result, nil
}

// catalogItem is one row in the inner catalog document.
type catalogItem struct {
	ItemID     string `xml:"item_id"`
	ItemCode   string `xml:"item_code"`
	VendorCode string `xml:"item_vendorCode"`
}

type catalogDocument struct {
	Tables []catalogItem `xml:"Table"`
}

func parseItems(payload string) ([]models.VendorCatalogEntry, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, fmt.Errorf("empty catalog payload")
	}

	var doc catalogDocument
	if err := xml.Unmarshal([]byte(payload), &doc); err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]models.VendorCatalogEntry, 0, len(doc.Tables))
	for _, row := range doc.Tables {
		if row.ItemCode == "" {
			continue
		}
		entries = append(entries, models.VendorCatalogEntry{
			SKU:            row.ItemCode,
			VendorCode:     row.VendorCode,
			ExternalItemID: row.ItemID,
			LastSynced:     now,
		})
	}
	return entries, nil
}
