package walletapi

import (
	"context"
	"net/http"
	"net/url"

	"walletapp/internal/models"
)

// ListContacts returns the user's favorite contacts. Contacts are never
// persisted locally.
func (c *Client) ListContacts(ctx context.Context) ([]models.Contact, error) {
	var contacts []models.Contact
	err := c.doJSON(ctx, "listContacts", http.MethodGet, c.apiBase+"/contacts", true,
		nil, &contacts, "Error al obtener contactos")
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

type addContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// AddContact registers a new favorite contact and returns it as stored by
// the backend.
func (c *Client) AddContact(ctx context.Context, firstName, lastName, email string) (*models.Contact, error) {
	if err := requireNonEmpty("firstName", firstName, "Por favor, completa todos los campos"); err != nil {
		return nil, err
	}
	if err := requireNonEmpty("lastName", lastName, "Por favor, completa todos los campos"); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	var contact models.Contact
	err := c.doJSON(ctx, "addContact", http.MethodPost, c.apiBase+"/contacts", true,
		addContactRequest{FirstName: firstName, LastName: lastName, Email: email},
		&contact, "Error al agregar contacto")
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// RemoveContact deletes a contact by id.
func (c *Client) RemoveContact(ctx context.Context, id string) error {
	return c.doJSON(ctx, "removeContact", http.MethodDelete,
		c.apiBase+"/contacts/"+url.PathEscape(id), true,
		nil, nil, "Error al eliminar contacto")
}
