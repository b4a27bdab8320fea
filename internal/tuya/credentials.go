package tuya

import "fmt"

const maskedSecret = "xxxxxxxxxxxxxxxx"

// Credentials are the pairing secrets and identity of one device.
type Credentials struct {
	UUID         string
	LocalKey     string
	DeviceID     string
	Category     string
	ProductID    string
	DeviceName   string
	ProductModel string
	ProductName  string
}

// NewCredentials validates and returns credentials. uuid, local_key,
// device_id, category and product_id must all be set.
func NewCredentials(uuid, localKey, deviceID, category, productID, deviceName, productModel, productName string) (*Credentials, error) {
	c := &Credentials{
		UUID:         uuid,
		LocalKey:     localKey,
		DeviceID:     deviceID,
		Category:     category,
		ProductID:    productID,
		DeviceName:   deviceName,
		ProductModel: productModel,
		ProductName:  productName,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first missing required field.
func (c *Credentials) Validate() error {
	required := []struct{ name, value string }{
		{"uuid", c.UUID},
		{"local_key", c.LocalKey},
		{"device_id", c.DeviceID},
		{"category", c.Category},
		{"product_id", c.ProductID},
	}
	for _, f := range required {
		if f.value == "" {
			return fmt.Errorf("%w: %s is empty", ErrIncompleteCredentials, f.name)
		}
	}
	return nil
}

// String hides uuid, local_key and device_id.
func (c *Credentials) String() string {
	return fmt.Sprintf(
		"uuid: %s, local_key: %s, device_id: %s, category: %s, product_id: %s, device_name: %s, product_model: %s, product_name: %s",
		maskedSecret, maskedSecret, maskedSecret,
		c.Category, c.ProductID, c.DeviceName, c.ProductModel, c.ProductName,
	)
}
