package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"sigs.k8s.io/yaml"
)

// DeploymentRequest is the body of POST /api/v1/deployments.
type DeploymentRequest struct {
	BackendURL       string `json:"im_url"`
	IMAccessToken    string `json:"im_access_token"`
	IaaSAccessToken  string `json:"iaas_access_token"`
	ToscaTemplate    string `json:"tosca_template"`
	ProviderName     string `json:"provider_name"`
	ProviderEndpoint string `json:"provider_endpoint"`
	ProviderType     string `json:"provider_type"`
}

// Validate checks that every field is present and both URL fields are
// absolute http(s) URLs.
func (r *DeploymentRequest) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"im_url", r.BackendURL},
		{"im_access_token", r.IMAccessToken},
		{"iaas_access_token", r.IaaSAccessToken},
		{"tosca_template", r.ToscaTemplate},
		{"provider_name", r.ProviderName},
		{"provider_endpoint", r.ProviderEndpoint},
		{"provider_type", r.ProviderType},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s: field required", f.name)
		}
	}
	if err := validateHTTPURL(r.BackendURL); err != nil {
		return fmt.Errorf("im_url: %w", err)
	}
	if err := validateHTTPURL(r.ProviderEndpoint); err != nil {
		return fmt.Errorf("provider_endpoint: %w", err)
	}
	return nil
}

// ValidateTemplate reports whether the TOSCA template is well-formed YAML.
// The template itself is never rewritten.
func (r *DeploymentRequest) ValidateTemplate() error {
	if _, err := yaml.YAMLToJSON([]byte(r.ToscaTemplate)); err != nil {
		return fmt.Errorf("tosca_template: not valid YAML: %w", err)
	}
	return nil
}

// BackendHost returns the host name of im_url.
func (r *DeploymentRequest) BackendHost() string {
	u, err := url.Parse(r.BackendURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL scheme should be 'http' or 'https'")
	}
	if u.Host == "" {
		return errors.New("URL host is missing")
	}
	return nil
}
