package confluence

// Page is the state of a Confluence page as observed by a single read.
type Page struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	SpaceKey string `json:"space_key" yaml:"space_key"`
	Version  int    `json:"version" yaml:"version"`
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Body     string `json:"body" yaml:"body"`
}

// PageInput is the desired state of a page for create and update calls.
type PageInput struct {
	SpaceKey string
	Title    string
	ParentID string
	Body     string
	// Message is stored as the version comment on updates.
	Message string
}

// content is the REST v1 representation of a page.
type content struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Space     *spaceRef  `json:"space,omitempty"`
	Version   *version   `json:"version,omitempty"`
	Ancestors []ancestor `json:"ancestors,omitempty"`
	Body      *body      `json:"body,omitempty"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type version struct {
	Number  int    `json:"number"`
	Message string `json:"message,omitempty"`
}

type ancestor struct {
	ID string `json:"id"`
}

type body struct {
	Storage storage `json:"storage"`
}

type storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// contentList is the envelope of GET /rest/api/content.
type contentList struct {
	Results []content `json:"results"`
	Size    int       `json:"size"`
}

// errorBody is the JSON error document Confluence returns with 4xx/5xx.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

func (c content) page() Page {
	p := Page{ID: c.ID, Title: c.Title}
	if c.Space != nil {
		p.SpaceKey = c.Space.Key
	}
	if c.Version != nil {
		p.Version = c.Version.Number
	}
	if n := len(c.Ancestors); n > 0 {
		p.ParentID = c.Ancestors[n-1].ID
	}
	if c.Body != nil {
		p.Body = c.Body.Storage.Value
	}
	return p
}
