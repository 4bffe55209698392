package ntuple

// Kind declares a record group: its field prefix and the attribute whose
// field carries the group length.
type Kind struct {
	Prefix   string
	SizeAttr string
}

// Record kinds of the HGCal analysis ntuples.
var (
	RecHitKind       = Kind{Prefix: "rechit", SizeAttr: "pt"}
	LayerClusterKind = Kind{Prefix: "layerCluster", SizeAttr: "pt"}
	SimClusterKind   = Kind{Prefix: "simcluster", SizeAttr: "pt"}
	TracksterKind    = Kind{Prefix: "trackster", SizeAttr: "Id"}
)

// SizeField returns the name of the length field.
func (k Kind) SizeField() string {
	return fieldName(k.Prefix, k.SizeAttr)
}

func (k Kind) withPrefix(prefix []string) Kind {
	if len(prefix) > 0 && prefix[0] != "" {
		k.Prefix = prefix[0]
	}
	return k
}
