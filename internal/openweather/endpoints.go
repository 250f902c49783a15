package openweather

import (
	"fmt"
	"net/url"
	"strconv"

	"openweather-device/internal/config"
)

// Endpoints holds the fully built request URLs for one location.
type Endpoints struct {
	Weather        string
	UVIndex        string
	CarbonMonoxide string
	SulfurDioxide  string
}

// NewEndpoints builds the four request URLs. The pollution endpoints take the
// coordinates truncated toward zero ("40,-79").
func NewEndpoints(cfg config.Config) (Endpoints, error) {
	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parse api base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return Endpoints{}, fmt.Errorf("api base url %q must be absolute", cfg.APIBaseURL)
	}

	located := url.Values{}
	located.Set("lat", strconv.FormatFloat(cfg.Latitude, 'f', -1, 64))
	located.Set("lon", strconv.FormatFloat(cfg.Longitude, 'f', -1, 64))
	located.Set("units", "metric")
	located.Set("appid", cfg.WeatherAppID)

	keyed := url.Values{}
	keyed.Set("appid", cfg.WeatherAppID)

	grid := fmt.Sprintf("%d,%d", int(cfg.Latitude), int(cfg.Longitude))

	return Endpoints{
		Weather:        resolve(base, "data/2.5/weather", located),
		UVIndex:        resolve(base, "data/2.5/uvi", located),
		CarbonMonoxide: resolve(base, "pollution/v1/co/"+grid+"/current.json", keyed),
		SulfurDioxide:  resolve(base, "pollution/v1/so2/"+grid+"/current.json", keyed),
	}, nil
}

func resolve(base *url.URL, path string, query url.Values) string {
	u := base.ResolveReference(&url.URL{Path: path})
	u.RawQuery = query.Encode()
	return u.String()
}
