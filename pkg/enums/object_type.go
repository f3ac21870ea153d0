package enums

// ObjectType tags the catalog record an order line or option points at.
type ObjectType string

const (
	ObjectTypeProduct   ObjectType = "product"
	ObjectTypeVariation ObjectType = "variation"
)

// IsValid reports whether the value is a known ObjectType.
func (o ObjectType) IsValid() bool {
	return o == ObjectTypeProduct || o == ObjectTypeVariation
}
