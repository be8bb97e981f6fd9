package controls

import "fmt"

const DefaultRDFBins = 50

// RDF is a radial distribution function compute with an editable bin count.
type RDF struct {
	Compute
	bins int
}

func NewRDF(id string, bins int) *RDF {
	if bins < 1 {
		bins = DefaultRDFBins
	}
	return &RDF{
		Compute: Compute{base: base{id: id, enabled: true, dirty: true}, command: rdfCommand(id, bins)},
		bins:    bins,
	}
}

func rdfCommand(id string, bins int) string {
	return fmt.Sprintf("compute %s all rdf %d", id, bins)
}

func (r *RDF) Bins() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bins
}

func (r *RDF) SetBins(bins int) {
	if bins < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bins = bins
	r.setCommandLocked(rdfCommand(r.id, bins))
}
