package models

// WeatherDay is the forecast for one calendar date.
type WeatherDay struct {
	Date        string   `json:"date"`
	Temp        int      `json:"temp"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Humidity    *int     `json:"humidity,omitempty"`
	WindSpeed   *float64 `json:"wind_speed,omitempty"`
}
