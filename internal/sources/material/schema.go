package material

// File represents the top-level structure of catalog.yaml.
//
// A bare list of categories (the legacy material.json layout) is accepted
// too, see Loader.Load.
type File struct {
	Bot        string     `yaml:"bot"`
	Categories []Category `yaml:"categories"`
	Resources  Resources  `yaml:"resources"`
}

// Category groups items under a subject title.
type Category struct {
	Title string `yaml:"title"`
	Price int    `yaml:"price,omitempty"` // default price of the category items, INR
	Items []Item `yaml:"items"`
}

// Item is one downloadable material.
type Item struct {
	Label string `yaml:"label"`
	Key   string `yaml:"key"`
	Price *int   `yaml:"price,omitempty"` // overrides the category price when set
}

// Resources is the instructional block appended to result pages.
type Resources struct {
	Guide  Link   `yaml:"guide"`
	Links  []Link `yaml:"links"`
	Footer string `yaml:"footer"`
}

type Link struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
	Note  string `yaml:"note,omitempty"`
}
