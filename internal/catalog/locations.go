package catalog

type location struct {
	code   string
	name   string
	cities []string
}

var locations = []location{
	{code: "US", name: "United States", cities: []string{"New York", "Los Angeles", "Chicago", "Dallas"}},
	{code: "GB", name: "United Kingdom", cities: []string{"London", "Manchester", "Glasgow"}},
	{code: "DE", name: "Germany", cities: []string{"Frankfurt", "Berlin", "Munich"}},
	{code: "FR", name: "France", cities: []string{"Paris", "Lyon", "Marseille"}},
	{code: "JP", name: "Japan", cities: []string{"Tokyo", "Osaka", "Sapporo"}},
	{code: "SG", name: "Singapore", cities: []string{"Singapore"}},
	{code: "CA", name: "Canada", cities: []string{"Toronto", "Vancouver", "Montreal"}},
	{code: "NL", name: "Netherlands", cities: []string{"Amsterdam", "Rotterdam"}},
	{code: "AU", name: "Australia", cities: []string{"Sydney", "Melbourne"}},
	{code: "BR", name: "Brazil", cities: []string{"Sao Paulo", "Rio de Janeiro"}},
	{code: "IN", name: "India", cities: []string{"Mumbai", "Delhi", "Bangalore"}},
	{code: "CH", name: "Switzerland", cities: []string{"Zurich", "Geneva"}},
}
