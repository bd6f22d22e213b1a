package hid

// PropertyKey names a device or manager property.
type PropertyKey string

// Device property keys from IOHIDKeys.h.
const (
	KeyTransport              PropertyKey = "Transport"
	KeyVendorID               PropertyKey = "VendorID"
	KeyVendorIDSource         PropertyKey = "VendorIDSource"
	KeyProductID              PropertyKey = "ProductID"
	KeyVersionNumber          PropertyKey = "VersionNumber"
	KeyManufacturer           PropertyKey = "Manufacturer"
	KeyProduct                PropertyKey = "Product"
	KeySerialNumber           PropertyKey = "SerialNumber"
	KeyCountryCode            PropertyKey = "CountryCode"
	KeyLocationID             PropertyKey = "LocationID"
	KeyDeviceUsagePairs       PropertyKey = "DeviceUsagePairs"
	KeyDeviceUsage            PropertyKey = "DeviceUsage"
	KeyDeviceUsagePage        PropertyKey = "DeviceUsagePage"
	KeyPrimaryUsage           PropertyKey = "PrimaryUsage"
	KeyPrimaryUsagePage       PropertyKey = "PrimaryUsagePage"
	KeyMaxInputReportSize     PropertyKey = "MaxInputReportSize"
	KeyMaxOutputReportSize    PropertyKey = "MaxOutputReportSize"
	KeyMaxFeatureReportSize   PropertyKey = "MaxFeatureReportSize"
	KeyReportInterval         PropertyKey = "ReportInterval"
	KeyBatchInterval          PropertyKey = "BatchInterval"
	KeyRequestTimeout         PropertyKey = "RequestTimeout"
	KeyReportDescriptor       PropertyKey = "ReportDescriptor"
	KeyBuiltIn                PropertyKey = "Built-In"
	KeyPhysicalDeviceUniqueID PropertyKey = "PhysicalDeviceUniqueID"
	KeyUniqueID               PropertyKey = "UniqueID"
	KeyModelNumber            PropertyKey = "ModelNumber"
)

// WellKnownKeys lists the keys printed by device summaries.
var WellKnownKeys = []PropertyKey{
	KeyTransport,
	KeyVendorID,
	KeyProductID,
	KeyVersionNumber,
	KeyManufacturer,
	KeyProduct,
	KeySerialNumber,
	KeyCountryCode,
	KeyLocationID,
	KeyPrimaryUsagePage,
	KeyPrimaryUsage,
	KeyMaxInputReportSize,
	KeyMaxOutputReportSize,
	KeyMaxFeatureReportSize,
	KeyReportInterval,
	KeyBuiltIn,
	KeyUniqueID,
}

// ElementKey names an element property used in element matching and by
// Device.ElementProperty.
type ElementKey string

const (
	ElementKeyCookie      ElementKey = "ElementCookie"
	ElementKeyType        ElementKey = "Type"
	ElementKeyUsage       ElementKey = "Usage"
	ElementKeyUsagePage   ElementKey = "UsagePage"
	ElementKeyMin         ElementKey = "Min"
	ElementKeyMax         ElementKey = "Max"
	ElementKeyReportID    ElementKey = "ReportID"
	ElementKeyReportSize  ElementKey = "ReportSize"
	ElementKeyReportCount ElementKey = "ReportCount"
	ElementKeyName        ElementKey = "Name"

	ElementKeyCollectionType    ElementKey = "CollectionType"
	ElementKeyScaledMin         ElementKey = "ScaledMin"
	ElementKeyScaledMax         ElementKey = "ScaledMax"
	ElementKeyUnit              ElementKey = "Unit"
	ElementKeyUnitExponent      ElementKey = "UnitExponent"
	ElementKeyIsArray           ElementKey = "IsArray"
	ElementKeyIsRelative        ElementKey = "IsRelative"
	ElementKeyIsWrapping        ElementKey = "IsWrapping"
	ElementKeyIsNonLinear       ElementKey = "IsNonLinear"
	ElementKeyHasPreferredState ElementKey = "HasPreferredState"
	ElementKeyHasNullState      ElementKey = "HasNullState"
)
