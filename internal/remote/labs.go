package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/iliyamo/lab-booking/internal/model"
)

// ListLabs performs GET /labs.
func (c *Client) ListLabs(ctx context.Context) ([]model.Lab, error) {
	data, err := c.do(ctx, http.MethodGet, "/labs", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeLabs(data)
}

// GetLab performs GET /labs/{id}.
func (c *Client) GetLab(ctx context.Context, id string) (model.Lab, error) {
	data, err := c.do(ctx, http.MethodGet, "/labs/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return model.Lab{}, err
	}
	return decodeLab(data)
}
