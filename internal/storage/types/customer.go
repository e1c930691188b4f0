package types

// Customer is one row of the raw customer source.
type Customer struct {
	CustomerID int64  // Unique key (CUSTOMER_ID)
	Name       string // NAME
	Age        int64  // AGE, zero when AgeUnknown
	Country    string // COUNTRY

	// AgeUnknown is set when the source left AGE empty. AGE is then stored
	// as NULL.
	AgeUnknown bool
}

// NullableAge returns the age, or nil when it is unknown.
func (c *Customer) NullableAge() *int64 {
	if c.AgeUnknown {
		return nil
	}
	age := c.Age
	return &age
}

// SetAge sets the age from a nullable value.
func (c *Customer) SetAge(age *int64) {
	c.Age, c.AgeUnknown = 0, age == nil
	if age != nil {
		c.Age = *age
	}
}
