package domain

// Style describes how captions are drawn. Values map onto ASS style fields.
type Style struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Font          string `json:"font" yaml:"font"`
	FontSize      int    `json:"font_size" yaml:"font_size"`
	PrimaryColour string `json:"primary_colour" yaml:"primary_colour"`
	OutlineColour string `json:"outline_colour" yaml:"outline_colour"`
	Outline       int    `json:"outline" yaml:"outline"`
	Bold          bool   `json:"bold" yaml:"bold"`
	Alignment     int    `json:"alignment" yaml:"alignment"`
	MarginV       int    `json:"margin_v" yaml:"margin_v"`
}
