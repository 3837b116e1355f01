// Package models defines the Graph entity types mirrored by Fleetlink.
package models

import "time"

// ManagedDevice is a device enrolled in the tenant.
type ManagedDevice struct {
	ID              string    `json:"id"`
	DeviceName      string    `json:"deviceName"`
	OperatingSystem string    `json:"operatingSystem"`
	OSVersion       string    `json:"osVersion"`
	SerialNumber    string    `json:"serialNumber"`
	ComplianceState string    `json:"complianceState"`
	EnrolledAt      time.Time `json:"enrolledDateTime"`
	LastSyncAt      time.Time `json:"lastSyncDateTime"`
	UserPrincipal   string    `json:"userPrincipalName"`
}

// MobileApp is an application managed by the tenant.
type MobileApp struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"displayName"`
	Publisher       string    `json:"publisher"`
	IsFeatured      bool      `json:"isFeatured"`
	CreatedAt       time.Time `json:"createdDateTime"`
	LastModified    time.Time `json:"lastModifiedDateTime"`
	PublishingState string    `json:"publishingState"`
}

// DirectoryGroup is a security or assignment group.
type DirectoryGroup struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"displayName"`
	Description     string    `json:"description"`
	SecurityEnabled bool      `json:"securityEnabled"`
	CreatedAt       time.Time `json:"createdDateTime"`
	MemberCount     int       `json:"memberCount"`
}

// AppAssignment binds an application to a target group with an intent.
type AppAssignment struct {
	ID       string           `json:"id"`
	AppID    string           `json:"appId"`
	Intent   string           `json:"intent"` // "required", "available", "uninstall"
	Target   AssignmentTarget `json:"target"`
	Settings map[string]any   `json:"settings,omitempty"`
}

// AssignmentTarget identifies the group an assignment applies to.
type AssignmentTarget struct {
	Type    string `json:"@odata.type"`
	GroupID string `json:"groupId"`
}
