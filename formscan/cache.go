package formscan

// Cache holds the forms and fields of the most recent detection pass, keyed
// by opid. It is owned by the page session that ran the detection: the
// preview/apply stage resolves opids back to live elements through it.
//
// The cache is rebuilt wholesale on every detection pass (no partial
// invalidation) and all access happens on the single page-session goroutine,
// so there is no locking.
type Cache struct {
	forms  map[string]*DetectedForm
	fields map[string]*DetectedField
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	c.Reset()
	return c
}

// Update replaces the cache contents with a fresh detection result.
func (c *Cache) Update(forms []*DetectedForm) {
	c.Reset()
	for _, fm := range forms {
		c.forms[fm.Opid] = fm
		for _, f := range fm.Fields {
			c.fields[f.Opid] = f
		}
	}
}

// Reset clears all cached forms and fields.
func (c *Cache) Reset() {
	c.forms = make(map[string]*DetectedForm)
	c.fields = make(map[string]*DetectedField)
}

// Form resolves a form opid. Returns nil when the opid is unknown (stale
// opid after a new pass, or page changed).
func (c *Cache) Form(opid string) *DetectedForm {
	return c.forms[opid]
}

// Field resolves a field opid. Returns nil when the opid is unknown.
func (c *Cache) Field(opid string) *DetectedField {
	return c.fields[opid]
}

// Len returns the number of cached fields.
func (c *Cache) Len() int {
	return len(c.fields)
}
