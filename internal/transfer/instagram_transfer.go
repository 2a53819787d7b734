package transfer

type InstagramUserTag struct {
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type InstagramContainerRequest struct {
	ImageURL    string             `json:"image_url,omitempty"`
	VideoURL    string             `json:"video_url,omitempty"`
	MediaType   string             `json:"media_type,omitempty"`
	Caption     string             `json:"caption,omitempty"`
	LocationID  string             `json:"location_id,omitempty"`
	UserTags    []InstagramUserTag `json:"user_tags,omitempty"`
	AccessToken string             `json:"access_token"`
}

type InstagramPublishRequest struct {
	CreationID  string `json:"creation_id"`
	AccessToken string `json:"access_token"`
}

type InstagramIDResponse struct {
	ID string `json:"id"`
}

type InstagramRefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
