package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"docchat-backend/internal/users"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// Google returns the Google provider.
func Google(clientID, clientSecret, redirectURL string) Provider {
	return Provider{
		Name: "google",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		Profile: googleProfile(googleUserInfoURL),
	}
}

// GitHub returns the GitHub provider.
func GitHub(clientID, clientSecret, redirectURL string) Provider {
	return Provider{
		Name: "github",
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		Profile: githubProfile(githubUserURL, githubEmailsURL),
	}
}

func googleProfile(infoURL string) ProfileFetcher {
	return func(ctx context.Context, client *http.Client) (users.Profile, error) {
		var info struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := getJSON(ctx, client, infoURL, &info); err != nil {
			return users.Profile{}, err
		}
		return users.Profile{Email: info.Email, Name: info.Name, Image: info.Picture}, nil
	}
}

func githubProfile(userURL, emailsURL string) ProfileFetcher {
	return func(ctx context.Context, client *http.Client) (users.Profile, error) {
		var info struct {
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := getJSON(ctx, client, userURL, &info); err != nil {
			return users.Profile{}, err
		}
		name := info.Name
		if name == "" {
			name = info.Login
		}
		profile := users.Profile{Email: info.Email, Name: name, Image: info.AvatarURL}
		if profile.Email != "" {
			return profile, nil
		}

		// Private emails are only listed by the emails endpoint.
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, emailsURL, &emails); err != nil {
			return users.Profile{}, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				profile.Email = e.Email
				break
			}
		}
		return profile, nil
	}
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
